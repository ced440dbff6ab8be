// Package orchestrator implements the agent/workflow dataflow engine: it
// renders prompts, calls the model through a provider, executes tool calls,
// and routes handovers between agents.
package orchestrator

import (
	"context"

	"github.com/vanshchauhan21/forge/internal/providers"
	"github.com/google/uuid"
)

// AgentId, ConversationId, ToolCallId, ToolName and ModelId are opaque
// strings, unique within their own namespace.
type (
	AgentId        string
	ConversationId string
	ToolCallId     string
	ToolName       string
	ModelId        string
)

// NewConversationId returns a random 128-bit id rendered as a stable string.
func NewConversationId() ConversationId {
	return ConversationId(uuid.NewString())
}

// Event is the only way control enters the orchestrator.
type Event struct {
	Name  string
	Value string
}

// FlowId references either an agent or a nested workflow.
type FlowId struct {
	Agent    AgentId
	Workflow WorkflowId
}

// IsAgent reports whether the FlowId names an agent rather than a workflow.
func (f FlowId) IsAgent() bool { return f.Agent != "" }

func (f FlowId) String() string {
	if f.IsAgent() {
		return "agent:" + string(f.Agent)
	}
	return "workflow:" + string(f.Workflow)
}

// WorkflowId names a nested workflow.
type WorkflowId string

// Transform rewrites the context in place between model calls.
type Transform interface {
	isTransform()
}

// Summarize replaces elided messages with a synthetic summary message once
// the estimated token count reaches TokenLimit.
type Summarize struct {
	AgentId    AgentId
	TokenLimit int
	InputKey   string
}

func (Summarize) isTransform() {}

// EnhanceUserPrompt rewrites the last user message's content through
// AgentId before the model call, when the last message is a user message.
type EnhanceUserPrompt struct {
	AgentId  AgentId
	InputKey string
}

func (EnhanceUserPrompt) isTransform() {}

// Agent is a named configuration of model + tools + prompts + subscribed
// events, driven by the Orchestrator.
type Agent struct {
	ID             AgentId
	Model          ModelId
	Tools          []ToolName
	Subscribe      []string
	SystemPrompt   string // template source, rendered by the Template Renderer
	UserPrompt     string // template source
	Transforms     []Transform
	Ephemeral      bool
	MaxWalkerDepth int
	ToolSupported  bool
}

// Workflow is a set of agents plus variable bindings and handover edges.
type Workflow struct {
	Agents    []Agent
	Variables map[string]any
	Handovers map[FlowId][]FlowId
}

// AgentByID returns the agent with the given id, if defined.
func (w *Workflow) AgentByID(id AgentId) (Agent, bool) {
	for _, a := range w.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// Subscribers returns every agent subscribed to the named event.
func (w *Workflow) Subscribers(event string) []Agent {
	var out []Agent
	for _, a := range w.Agents {
		for _, s := range a.Subscribe {
			if s == event {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Provider is the subset of the C2 streaming adapter the Orchestrator needs.
// Its Chat takes the model id as a separate argument, so the providers
// package adapters, whose Chat takes only the request, do not satisfy it
// directly.
type Provider interface {
	Chat(ctx context.Context, model string, req providers.CompletionRequest) (<-chan providers.StreamItem, error)
}
