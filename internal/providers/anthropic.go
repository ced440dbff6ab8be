package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures an Anthropic adapter.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        RetryPolicy
}

// AnthropicAdapter implements Provider for Anthropic's Messages API. Adapted
// in place from the teacher's AnthropicProvider: convertMessages/convertTools
// are kept, and error wrapping is done by statusCodeOf/wrapInvalidStatus; the
// ad hoc per-call retry loop is
// replaced by RetryPolicy, and event handling is generalized into the
// shared ToolCallAssembler so every vendor adapter assembles tool calls the
// same way.
type AnthropicAdapter struct {
	client       anthropic.Client
	defaultModel string
	retry        RetryPolicy
}

// NewAnthropicAdapter builds an adapter from the given configuration.
func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: anthropic API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 && retry.InitialBackoff == 0 {
		retry = RetryPolicyFromEnv()
	}
	return &AnthropicAdapter{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
		retry:        retry,
	}, nil
}

// Name identifies this provider for transformer selection and logging.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Models lists the models this adapter is known to support.
func (a *AnthropicAdapter) Models() []Model {
	return []Model{
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-haiku-4-20250514", Name: "Claude Haiku 4", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
	}
}

func (a *AnthropicAdapter) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return a.defaultModel
}

// Chat streams normalized completion messages for the given request.
func (a *AnthropicAdapter) Chat(ctx context.Context, req CompletionRequest) (<-chan StreamItem, error) {
	out := make(chan StreamItem)
	go func() {
		defer close(out)

		params, err := a.buildParams(req)
		if err != nil {
			out <- StreamItem{Err: fmt.Errorf("providers: anthropic: %w", err)}
			return
		}

		var lastErr error
		maxAttempts := a.retry.MaxAttempts
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		for attempt := 1; attempt <= maxAttempts+1; attempt++ {
			stream := a.client.Messages.NewStreaming(ctx, params)
			lastErr = a.processStream(ctx, stream, out)
			if lastErr == nil {
				return
			}
			status := statusCodeOf(lastErr)
			if status == 0 || !a.retry.Retryable(status) || attempt > maxAttempts {
				out <- StreamItem{Err: wrapInvalidStatus(lastErr, status)}
				return
			}
			select {
			case <-ctx.Done():
				out <- StreamItem{Err: ctx.Err()}
				return
			case <-time.After(a.retry.Backoff(attempt)):
			}
		}
	}()
	return out, nil
}

func (a *AnthropicAdapter) buildParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	msgs, err := a.convertMessages(req.Context.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("convert messages: %w", err)
	}
	maxTokens := req.Context.Sampling.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model(req)),
		Messages:  msgs,
		MaxTokens: int64(maxTokens),
	}
	if req.Context.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Context.System}}
	}
	if len(req.Context.Tools) > 0 {
		tools, err := a.convertTools(req.Context.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("convert tools: %w", err)
		}
		params.Tools = tools
	}
	if s := req.Context.Sampling; s.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Temperature)
	}
	if s := req.Context.Sampling; s.TopP != nil {
		params.TopP = anthropic.Float(*s.TopP)
	}
	return params, nil
}

// convertMessages maps the neutral Message sequence into Anthropic message
// params, recognizing the CacheControlLastN marker left by the transformer
// pipeline and attaching ephemeral cache-control breadcrumbs accordingly.
func (a *AnthropicAdapter) convertMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.IsToolResult:
			block := anthropic.NewToolResultBlock(m.ToolCallID, m.ToolContent, m.IsError)
			out = append(out, anthropic.NewUserMessage(block))
		case m.IsImage:
			src, mediaType, isBase64 := parseDataURL(m.ImageURL)
			var block anthropic.ContentBlockParamUnion
			if isBase64 {
				block = anthropic.NewImageBlockBase64(mediaType, src)
			} else {
				block = anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: m.ImageURL})
			}
			out = append(out, anthropic.NewUserMessage(block))
		case m.Role == RoleUser:
			content, cached := hasCacheControl(m.Content)
			text := anthropic.NewTextBlock(content)
			if cached {
				text.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			out = append(out, anthropic.NewUserMessage(text))
		case m.Role == RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			content, cached := hasCacheControl(m.Content)
			if content != "" {
				text := anthropic.NewTextBlock(content)
				if cached {
					text.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
				}
				blocks = append(blocks, text)
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.CallID, tc.Arguments, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out, nil
}

func (a *AnthropicAdapter) convertTools(tools []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

// processStream consumes one Anthropic SSE stream and emits normalized
// StreamItems, using a ToolCallAssembler for the content_block_start /
// content_block_delta / content_block_stop accumulation the teacher's
// processStream performs inline with a strings.Builder.
func (a *AnthropicAdapter) processStream(ctx context.Context, stream anthropicEventStream, out chan<- StreamItem) error {
	assembler := NewToolCallAssembler()
	toolIndex := -1

	for stream.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolIndex++
				toolUse := block.AsToolUse()
				assembler.Add(ToolCallPart{Index: toolIndex, Name: toolUse.Name, CallID: toolUse.ID})
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- StreamItem{Message: &CompletionMessage{Content: delta.Text}}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					assembler.Add(ToolCallPart{Index: toolIndex, ArgumentsPart: delta.PartialJSON})
				}
			}
		case "message_delta":
			usage := event.AsMessageDelta().Usage
			if usage.OutputTokens > 0 {
				out <- StreamItem{Message: &CompletionMessage{Usage: &Usage{OutputTokens: int(usage.OutputTokens)}}}
			}
			if reason := string(event.AsMessageDelta().Delta.StopReason); reason == "tool_use" {
				calls, err := assembler.Finalize()
				if err != nil {
					return err
				}
				parts := make([]ToolCallPart, 0, len(calls))
				for i, c := range calls {
					parts = append(parts, ToolCallPart{Index: i, Name: c.Name, CallID: c.CallID, ArgumentsPart: string(c.Arguments)})
				}
				out <- StreamItem{Message: &CompletionMessage{ToolCallParts: parts, FinishReason: "tool_calls"}}
			}
		case "message_stop":
			if !assembler.Empty() {
				return nil
			}
			out <- StreamItem{Message: &CompletionMessage{FinishReason: "stop"}}
		case "error":
			return fmt.Errorf("anthropic stream error event")
		}
	}
	return stream.Err()
}

// anthropicEventStream narrows *ssestream.Stream[anthropic.MessageStreamEventUnion]
// to the methods processStream needs, so tests can substitute a fake.
type anthropicEventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

func statusCodeOf(err error) int {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return apiErr.StatusCode
	}
	return 0
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	for err != nil {
		if ae, ok := err.(*anthropic.Error); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func wrapInvalidStatus(err error, status int) error {
	if status == 0 {
		return fmt.Errorf("providers: anthropic: %w", err)
	}
	return fmt.Errorf("providers: anthropic: POST /v1/messages [%s]: %w", strconv.Itoa(status), err)
}

func parseDataURL(raw string) (data, mediaType string, isBase64 bool) {
	if !strings.HasPrefix(raw, "data:") {
		return raw, "", false
	}
	rest := strings.TrimPrefix(raw, "data:")
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return raw, "", false
	}
	meta := parts[0]
	if !strings.HasSuffix(meta, ";base64") {
		return raw, "", false
	}
	return parts[1], strings.TrimSuffix(meta, ";base64"), true
}

var _ = http.StatusTooManyRequests // referenced for status-code allow-list parity with retry.go
