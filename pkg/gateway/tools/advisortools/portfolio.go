package advisortools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// PortfolioLookup reports a client's holdings. Backed by an in-memory book;
// the brokerage data plane is out of scope here.
type PortfolioLookup struct{}

type holding struct {
	Ticker      string
	Quantity    float64
	MarketValue float64
}

var portfolioBook = map[string][]holding{
	"C-1001": {
		{Ticker: "AAPL", Quantity: 150, MarketValue: 34125.00},
		{Ticker: "MSFT", Quantity: 80, MarketValue: 33760.50},
		{Ticker: "VTI", Quantity: 200, MarketValue: 52980.00},
	},
	"C-1002": {
		{Ticker: "GOOGL", Quantity: 45, MarketValue: 7678.15},
		{Ticker: "BND", Quantity: 310, MarketValue: 22813.40},
	},
}

func (PortfolioLookup) Name() string { return ToolPortfolioLookup }

func (PortfolioLookup) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ToolPortfolioLookup,
		Description: "Look up the current portfolio summary for a client: total market value and top holdings.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"clientId": {
					Type:        genai.TypeString,
					Description: "Client identifier, e.g. C-1001.",
				},
			},
			Required: []string{"clientId"},
		},
	}
}

func (PortfolioLookup) Execute(ctx context.Context, args map[string]any) map[string]any {
	clientID, ok := stringArg(args, "clientId")
	if !ok {
		return errorResult("clientId is required")
	}

	holdings, found := portfolioBook[strings.ToUpper(clientID)]
	if !found {
		return errorResult(fmt.Sprintf("no portfolio found for client %q", clientID))
	}

	var total float64
	top := make([]map[string]any, 0, len(holdings))
	for _, h := range holdings {
		total += h.MarketValue
		top = append(top, map[string]any{
			"ticker":       h.Ticker,
			"quantity":     h.Quantity,
			"market_value": h.MarketValue,
		})
	}

	return map[string]any{
		"client_id":          strings.ToUpper(clientID),
		"total_market_value": total,
		"top_holdings":       top,
	}
}
