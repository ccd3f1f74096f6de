package advisortools

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// KnowledgeBaseLookup answers questions from the firm's research notes.
// The production deployment fronts a retrieval service; this build serves a
// small curated set so answers stay deterministic.
type KnowledgeBaseLookup struct{}

var researchNotes = []struct {
	keywords []string
	summary  string
}{
	{
		keywords: []string{"diversification", "diversify", "allocation"},
		summary:  "Our house view favors broad diversification across equities, fixed income, and alternatives, with rebalancing at least annually to keep risk within each client's target band.",
	},
	{
		keywords: []string{"rate", "rates", "fed", "interest"},
		summary:  "We expect policy rates to stay near current levels through year end, with fixed income duration positioned slightly long of benchmark.",
	},
	{
		keywords: []string{"retirement", "401k", "ira"},
		summary:  "For retirement accounts we recommend maximizing tax-advantaged contributions before taxable investing, and shifting toward income-producing assets within ten years of the target date.",
	},
}

func (KnowledgeBaseLookup) Name() string { return ToolKnowledgeBaseLookup }

func (KnowledgeBaseLookup) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ToolKnowledgeBaseLookup,
		Description: "Search the advisory knowledge base and return a short summary answering the question.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question": {
					Type:        genai.TypeString,
					Description: "The client's question, in natural language.",
				},
			},
			Required: []string{"question"},
		},
	}
}

func (KnowledgeBaseLookup) Execute(ctx context.Context, args map[string]any) map[string]any {
	question, ok := stringArg(args, "question")
	if !ok {
		return errorResult("question is required")
	}

	lowered := strings.ToLower(question)
	for _, note := range researchNotes {
		for _, kw := range note.keywords {
			if strings.Contains(lowered, kw) {
				return map[string]any{"summary": note.summary}
			}
		}
	}
	return map[string]any{
		"summary": "No specific research note matched that question. General guidance: maintain a diversified allocation aligned with your risk tolerance and revisit it with your advisor quarterly.",
	}
}
