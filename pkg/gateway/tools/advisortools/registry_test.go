package advisortools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestDefault_RegistersAllTools(t *testing.T) {
	t.Parallel()
	reg := Default()
	want := []string{
		ToolKnowledgeBaseLookup,
		ToolNewsLookup,
		ToolOrderStatus,
		ToolPortfolioLookup,
		ToolStockPrice,
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if decls := reg.Declarations(); len(decls) != len(want) {
		t.Fatalf("Declarations() returned %d entries, want %d", len(decls), len(want))
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	t.Parallel()
	out := Default().Execute(context.Background(), "timeTravel", nil)
	if _, ok := out["error"]; !ok {
		t.Fatalf("Execute unknown tool = %v, want error payload", out)
	}
}

func TestRegistry_ExecuteRecoversPanic(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(panicTool{})
	out := reg.Execute(context.Background(), "panicTool", nil)
	errMsg, ok := out["error"].(string)
	if !ok || !strings.Contains(errMsg, "panicked") {
		t.Fatalf("Execute panicking tool = %v, want panic error payload", out)
	}
}

type panicTool struct{}

func (panicTool) Name() string { return "panicTool" }
func (panicTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: "panicTool"}
}
func (panicTool) Execute(context.Context, map[string]any) map[string]any {
	panic("boom")
}

func TestPortfolioLookup(t *testing.T) {
	t.Parallel()
	out := Default().Execute(context.Background(), ToolPortfolioLookup, map[string]any{"clientId": "c-1001"})
	if _, bad := out["error"]; bad {
		t.Fatalf("portfolioLookup returned error: %v", out)
	}
	if out["client_id"] != "C-1001" {
		t.Fatalf("client_id = %v, want C-1001", out["client_id"])
	}
	total, ok := out["total_market_value"].(float64)
	if !ok || total <= 0 {
		t.Fatalf("total_market_value = %v, want > 0", out["total_market_value"])
	}

	out = Default().Execute(context.Background(), ToolPortfolioLookup, map[string]any{"clientId": "C-9999"})
	if _, bad := out["error"]; !bad {
		t.Fatalf("portfolioLookup unknown client = %v, want error payload", out)
	}

	out = Default().Execute(context.Background(), ToolPortfolioLookup, nil)
	if _, bad := out["error"]; !bad {
		t.Fatalf("portfolioLookup without args = %v, want error payload", out)
	}
}

func TestNewsLookup_FallsBackToDefaultWire(t *testing.T) {
	t.Parallel()
	out := Default().Execute(context.Background(), ToolNewsLookup, map[string]any{"topic": "obscure sector"})
	articles, ok := out["articles"].([]map[string]any)
	if !ok || len(articles) == 0 {
		t.Fatalf("articles = %v, want non-empty", out["articles"])
	}
	for _, a := range articles {
		switch a["sentiment"] {
		case "positive", "negative", "neutral":
		default:
			t.Fatalf("sentiment = %v, want positive|negative|neutral", a["sentiment"])
		}
	}
}

func TestKnowledgeBaseLookup_MatchesNote(t *testing.T) {
	t.Parallel()
	out := Default().Execute(context.Background(), ToolKnowledgeBaseLookup, map[string]any{"question": "How should I think about diversification?"})
	summary, ok := out["summary"].(string)
	if !ok || !strings.Contains(summary, "diversification") {
		t.Fatalf("summary = %v, want diversification note", out["summary"])
	}
}

func TestToolResults_AreJSONSerializable(t *testing.T) {
	t.Parallel()
	reg := Default()
	calls := []struct {
		name string
		args map[string]any
	}{
		{ToolPortfolioLookup, map[string]any{"clientId": "C-1002"}},
		{ToolNewsLookup, map[string]any{"topic": "tech"}},
		{ToolKnowledgeBaseLookup, map[string]any{"question": "what about rates?"}},
		{ToolStockPrice, map[string]any{"ticker": "msft"}},
		{ToolOrderStatus, map[string]any{"orderId": "ord-2202"}},
		{ToolStockPrice, nil},
	}
	for _, call := range calls {
		out := reg.Execute(context.Background(), call.name, call.args)
		if out == nil {
			t.Fatalf("%s returned nil result", call.name)
		}
		if _, err := json.Marshal(out); err != nil {
			t.Fatalf("%s result is not serializable: %v", call.name, err)
		}
	}
}
