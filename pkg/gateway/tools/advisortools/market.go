package advisortools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// StockPrice quotes a last-trade price for a ticker.
type StockPrice struct{}

var quoteBoard = map[string]float64{
	"AAPL":  227.50,
	"MSFT":  422.01,
	"GOOGL": 170.63,
	"VTI":   264.90,
	"BND":   73.59,
}

func (StockPrice) Name() string { return ToolStockPrice }

func (StockPrice) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ToolStockPrice,
		Description: "Get the latest trade price for a stock or ETF ticker.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"ticker": {
					Type:        genai.TypeString,
					Description: "Ticker symbol, e.g. AAPL.",
				},
			},
			Required: []string{"ticker"},
		},
	}
}

func (StockPrice) Execute(ctx context.Context, args map[string]any) map[string]any {
	ticker, ok := stringArg(args, "ticker")
	if !ok {
		return errorResult("ticker is required")
	}
	ticker = strings.ToUpper(ticker)
	price, found := quoteBoard[ticker]
	if !found {
		return errorResult(fmt.Sprintf("no quote available for %q", ticker))
	}
	return map[string]any{
		"ticker":   ticker,
		"price":    price,
		"currency": "USD",
	}
}

// OrderStatus reports the state of a previously placed order.
type OrderStatus struct{}

var orderLedger = map[string]map[string]any{
	"ORD-2201": {
		"order_id": "ORD-2201",
		"ticker":   "VTI",
		"side":     "buy",
		"quantity": 25.0,
		"status":   "filled",
	},
	"ORD-2202": {
		"order_id": "ORD-2202",
		"ticker":   "AAPL",
		"side":     "sell",
		"quantity": 10.0,
		"status":   "pending",
	},
}

func (OrderStatus) Name() string { return ToolOrderStatus }

func (OrderStatus) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        ToolOrderStatus,
		Description: "Check the status of a previously submitted order by order id.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"orderId": {
					Type:        genai.TypeString,
					Description: "Order identifier, e.g. ORD-2201.",
				},
			},
			Required: []string{"orderId"},
		},
	}
}

func (OrderStatus) Execute(ctx context.Context, args map[string]any) map[string]any {
	orderID, ok := stringArg(args, "orderId")
	if !ok {
		return errorResult("orderId is required")
	}
	order, found := orderLedger[strings.ToUpper(orderID)]
	if !found {
		return errorResult(fmt.Sprintf("no order found with id %q", orderID))
	}
	out := make(map[string]any, len(order))
	for k, v := range order {
		out[k] = v
	}
	return out
}
