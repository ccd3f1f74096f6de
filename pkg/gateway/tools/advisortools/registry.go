// Package advisortools hosts the function tools exposed to the
// conversational backend. Executors are synchronous, return only
// JSON-serializable maps, and report failures as {"error": ...} payloads
// instead of Go errors so a bad tool call never ends a session.
package advisortools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"
)

const (
	ToolPortfolioLookup     = "portfolioLookup"
	ToolNewsLookup          = "newsLookup"
	ToolKnowledgeBaseLookup = "knowledgeBaseLookup"
	ToolStockPrice          = "stockPrice"
	ToolOrderStatus         = "orderStatus"
)

type Executor interface {
	Name() string
	Declaration() *genai.FunctionDeclaration
	Execute(ctx context.Context, args map[string]any) map[string]any
}

type Registry struct {
	byName map[string]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	registry := &Registry{byName: make(map[string]Executor, len(executors))}
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		registry.byName[ex.Name()] = ex
	}
	return registry
}

// Default returns the registry with the full advisor tool surface.
func Default() *Registry {
	return NewRegistry(
		PortfolioLookup{},
		NewsLookup{},
		KnowledgeBaseLookup{},
		StockPrice{},
		OrderStatus{},
	)
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the function declarations in name order, for wiring
// into the backend session config.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	if r == nil {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(r.byName))
	for _, name := range r.Names() {
		decls = append(decls, r.byName[name].Declaration())
	}
	return decls
}

// Execute runs the named tool. It never panics past this boundary and the
// returned map is always non-nil and serializable.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result map[string]any) {
	defer func() {
		if v := recover(); v != nil {
			result = errorResult(fmt.Sprintf("tool %q panicked: %v", name, v))
		}
	}()

	if r == nil {
		return errorResult("tool registry is not configured")
	}
	ex, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool %q", name))
	}
	out := ex.Execute(ctx, args)
	if out == nil {
		return errorResult(fmt.Sprintf("tool %q returned no result", name))
	}
	return out
}

func errorResult(message string) map[string]any {
	return map[string]any{"error": message}
}

func stringArg(args map[string]any, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	v, ok := args[key].(string)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
