package orchestrator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/vanshchauhan21/forge/internal/providers"
	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// RegistryAdapter satisfies ToolDispatcher over a concrete
// *toolservice.Registry, scoping UsagePromptFor to only the tool names an
// agent declares (spec §4.1 step 1: "concatenation of tool usage prompts for
// A.tools", not every registered tool).
type RegistryAdapter struct {
	Registry *toolservice.Registry
}

// NewRegistryAdapter wraps a Registry for orchestrator use.
func NewRegistryAdapter(r *toolservice.Registry) *RegistryAdapter {
	return &RegistryAdapter{Registry: r}
}

// Dispatch forwards to the registry, translating toolservice.Result into the
// orchestrator's narrower ToolResult shape.
func (a *RegistryAdapter) Dispatch(ctx context.Context, name string, params json.RawMessage) *ToolResult {
	r := a.Registry.Dispatch(ctx, name, params)
	return &ToolResult{Content: r.Content, IsError: r.IsError}
}

// UsagePromptFor concatenates name/description/parameter-table entries for
// exactly the named tools, sorted, matching spec §4.3's "usage_prompt()"
// ordering guarantee scoped down to one agent's declared tool set.
func (a *RegistryAdapter) UsagePromptFor(names []ToolName) string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[string(n)] = true
	}
	all := a.Registry.List()
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	var b strings.Builder
	for _, t := range all {
		if !want[t.Name()] {
			continue
		}
		one := toolservice.New()
		one.Register(t)
		b.WriteString(one.UsagePrompt())
	}
	return b.String()
}

// Definitions returns ToolDefinitions for exactly the named tools, sorted by
// name, for inclusion in the Context sent to the model (spec §3 Context).
func (a *RegistryAdapter) Definitions(names []ToolName) []providers.ToolDefinition {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[string(n)] = true
	}
	all := a.Registry.List()
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	var out []providers.ToolDefinition
	for _, t := range all {
		if !want[t.Name()] {
			continue
		}
		out = append(out, providers.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return out
}
