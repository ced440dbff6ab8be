// Package providers adapts chat-completion HTTP SSE streams from multiple
// upstream vendors into one normalized lazy sequence of completion messages.
package providers

import (
	"context"
	"encoding/json"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one of System/User/Assistant content, a ToolResult keyed by a
// ToolCallId, or an Image (url or base64 data URI). Exactly one of the
// content-bearing fields is populated depending on Role/IsToolResult/IsImage.
type Message struct {
	Role Role

	// Content holds plain text for System/User/Assistant messages.
	Content string

	// ToolCalls is populated on Assistant messages that request tool use.
	ToolCalls []ToolCallFull

	// IsToolResult marks this Message as a ToolResult keyed by ToolCallID.
	IsToolResult bool
	ToolCallID   string
	ToolContent  string
	IsError      bool

	// IsImage marks this Message as an image attachment.
	IsImage   bool
	ImageURL  string // http(s) URL or data: URI
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ToolChoice directs whether/how the model must call a tool.
type ToolChoice struct {
	Mode string // "auto", "none", "required", or a specific tool name
	Name string
}

// SamplingParams bounds the model's generation behavior. Zero value means
// "use the provider default".
type SamplingParams struct {
	Temperature *float64 // [0, 2]
	TopP        *float64 // [0, 1]
	TopK        *int     // [1, 1000]
	MaxTokens   int
}

// Context is the ordered message history plus the surrounding request
// shape sent to the model on each turn.
type Context struct {
	System     string // pinned system message, optional
	Messages   []Message
	Tools      []ToolDefinition
	ToolChoice *ToolChoice
	Sampling   SamplingParams
}

// ToolCallFull is a fully assembled tool call: a name, an optional call id
// assigned by the vendor, and JSON arguments.
type ToolCallFull struct {
	Name      string
	CallID    string
	Arguments json.RawMessage
}

// ToolCallPart is the streaming fragment form of a tool call. Name and
// CallID are optional on any individual part; ArgumentsPart accumulates.
type ToolCallPart struct {
	Index         int
	Name          string
	CallID        string
	ArgumentsPart string
}

// Usage reports token accounting for a completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionMessage is the normalized, already-assembled output of a
// Provider.Chat call: either an incremental delta (Content/ToolCallParts)
// or, on the final item, FinishReason/Usage and, for a tool_calls finish,
// the fully assembled calls in ToolCallParts are populated.
type CompletionMessage struct {
	Content       string
	ToolCallParts []ToolCallPart
	Usage         *Usage
	FinishReason  string // "stop", "tool_calls", "length", ...
}

// StreamItem is one item yielded by a Provider.Chat stream: either a
// CompletionMessage delta or a terminal error.
type StreamItem struct {
	Message *CompletionMessage
	Err     error
}

// Model describes an available model and its capabilities.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
	SupportsTools  bool
}

// CompletionRequest bundles a model id with the neutral Context.
type CompletionRequest struct {
	Model   string
	Context Context
}

// Provider exposes a provider-neutral streaming chat API. One implementation
// exists per vendor family (OpenAI-compatible, Anthropic).
type Provider interface {
	// Chat streams normalized completion messages for the given request.
	// The returned channel is closed when the stream ends, is cancelled via
	// ctx, or a terminal error is sent as the final StreamItem.
	Chat(ctx context.Context, req CompletionRequest) (<-chan StreamItem, error)

	// Models lists the models this provider exposes.
	Models() []Model

	// Name identifies the provider for logging and transformer selection.
	Name() string
}
