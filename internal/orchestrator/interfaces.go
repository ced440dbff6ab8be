package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/vanshchauhan21/forge/internal/providers"
)

// ContextStore persists opaque context blobs across turns. The Orchestrator
// treats it as a single external writer (spec §3 Lifecycles, §5 "Conversation
// persistence is serialized through the external Conversation collaborator").
// Satisfied by an adapter over the (out-of-scope) SQLite-backed conversation
// store named in spec §1.
type ContextStore interface {
	Load(ctx context.Context, id ConversationId) (providers.Context, bool, error)
	Save(ctx context.Context, id ConversationId, c providers.Context) error
}

// ToolResult mirrors toolservice.Result without importing the toolservice
// package's Tool/Registry surface, keeping the Orchestrator's dependency on
// C3 limited to the one operation it needs.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolDispatcher is the subset of the C3 Tool Registry the Orchestrator
// needs: dispatch one call by name, and a usage prompt scoped to a given
// agent's declared tool list for system-prompt rendering (spec §4.1 step 1).
// Satisfied by RegistryAdapter (toolsadapter.go), which wraps a
// *toolservice.Registry.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, params json.RawMessage) *ToolResult
	UsagePromptFor(names []ToolName) string
	Definitions(names []ToolName) []providers.ToolDefinition
}

// EventSink receives events emitted by a completed agent run (e.g.
// CompleteTitle, ModifyContext, spec §4.1 step 4). Emission is fire-and-forget
// from the Orchestrator's perspective; the external UI collaborator owns
// delivery.
type EventSink interface {
	Emit(name string, value string)
}

// NopEventSink discards every event.
type NopEventSink struct{}

// Emit implements EventSink.
func (NopEventSink) Emit(string, string) {}
