package advisortools

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// NewsLookup returns recent market headlines with a coarse sentiment label.
type NewsLookup struct{}

type article struct {
	Headline  string
	Summary   string
	Sentiment string
}

var newsWire = map[string][]article{
	"tech": {
		{
			Headline:  "Chipmakers rally on data center demand",
			Summary:   "Semiconductor names extended gains as hyperscalers raised capital expenditure guidance.",
			Sentiment: "positive",
		},
		{
			Headline:  "Regulators open inquiry into app store billing",
			Summary:   "A new antitrust inquiry targets in-app purchase commissions across major platforms.",
			Sentiment: "negative",
		},
	},
	"rates": {
		{
			Headline:  "Treasury yields drift lower ahead of auction",
			Summary:   "The 10-year settled near its monthly low as traders positioned for supply.",
			Sentiment: "neutral",
		},
	},
	"energy": {
		{
			Headline:  "Crude slips on inventory build",
			Summary:   "A larger-than-expected stockpile increase pressured benchmarks for a second session.",
			Sentiment: "negative",
		},
	},
}

var defaultWire = []article{
	{
		Headline:  "Stocks mixed as earnings season winds down",
		Summary:   "Major indexes closed little changed with breadth tilting slightly positive.",
		Sentiment: "neutral",
	},
}

func (NewsLookup) Name() string { return ToolNewsLookup }

func (NewsLookup) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ToolNewsLookup,
		Description: "Fetch recent market news and sentiment for a topic such as tech, rates, or energy.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"topic": {
					Type:        genai.TypeString,
					Description: "News topic or sector keyword.",
				},
			},
			Required: []string{"topic"},
		},
	}
}

func (NewsLookup) Execute(ctx context.Context, args map[string]any) map[string]any {
	topic, ok := stringArg(args, "topic")
	if !ok {
		return errorResult("topic is required")
	}

	articles := defaultWire
	if matched, found := newsWire[strings.ToLower(topic)]; found {
		articles = matched
	}

	out := make([]map[string]any, 0, len(articles))
	for _, a := range articles {
		out = append(out, map[string]any{
			"headline":  a.Headline,
			"summary":   a.Summary,
			"sentiment": a.Sentiment,
		})
	}
	return map[string]any{
		"topic":    topic,
		"articles": out,
	}
}
