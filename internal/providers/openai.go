package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-family adapter. BaseURL is also how the
// generic OpenAI-compatible proxy adapter (compatible.go) reuses this type.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        RetryPolicy
}

// OpenAIAdapter implements Provider for OpenAI-family chat completions.
// Grounded on the teacher's OpenAIProvider: the streaming loop, per-index
// tool-call accumulation, and finish_reason handling are adapted in place,
// with assembly delegated to the shared ToolCallAssembler and retries
// delegated to RetryPolicy instead of the teacher's fixed linear backoff.
type OpenAIAdapter struct {
	client       *openai.Client
	defaultModel string
	retry        RetryPolicy
	name         string
}

// NewOpenAIAdapter builds an adapter targeting the standard OpenAI API.
func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	return newOpenAIFamilyAdapter(cfg, "openai")
}

func newOpenAIFamilyAdapter(cfg OpenAIConfig, name string) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: %s API key is required", name)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 && retry.InitialBackoff == 0 {
		retry = RetryPolicyFromEnv()
	}
	return &OpenAIAdapter{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: model,
		retry:        retry,
		name:         name,
	}, nil
}

// Name identifies this provider for transformer selection and logging.
func (a *OpenAIAdapter) Name() string { return a.name }

// Models lists the models this adapter is known to support.
func (a *OpenAIAdapter) Models() []Model {
	return []Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000, SupportsVision: true, SupportsTools: true},
		{ID: "o1", Name: "o1", ContextSize: 200000, SupportsVision: false, SupportsTools: true},
	}
}

func (a *OpenAIAdapter) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return a.defaultModel
}

// Chat streams normalized completion messages for the given request.
func (a *OpenAIAdapter) Chat(ctx context.Context, req CompletionRequest) (<-chan StreamItem, error) {
	chatReq, err := a.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("providers: %s: %w", a.name, err)
	}

	out := make(chan StreamItem)
	go func() {
		defer close(out)

		var stream *openai.ChatCompletionStream
		var lastErr error
		maxAttempts := a.retry.MaxAttempts
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		for attempt := 1; attempt <= maxAttempts+1; attempt++ {
			stream, lastErr = a.client.CreateChatCompletionStream(ctx, chatReq)
			if lastErr == nil {
				break
			}
			status := openAIStatusCode(lastErr)
			if status == 0 || !a.retry.Retryable(status) || attempt > maxAttempts {
				out <- StreamItem{Err: wrapOpenAIStatus(a.name, lastErr, status)}
				return
			}
			select {
			case <-ctx.Done():
				out <- StreamItem{Err: ctx.Err()}
				return
			case <-time.After(a.retry.Backoff(attempt)):
			}
		}
		defer stream.Close()
		a.processStream(ctx, stream, out)
	}()
	return out, nil
}

func (a *OpenAIAdapter) buildRequest(req CompletionRequest) (openai.ChatCompletionRequest, error) {
	msgs, err := a.convertMessages(req.Context)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("convert messages: %w", err)
	}
	chatReq := openai.ChatCompletionRequest{
		Model:    a.model(req),
		Messages: msgs,
		Stream:   true,
	}
	if req.Context.Sampling.MaxTokens > 0 {
		chatReq.MaxTokens = req.Context.Sampling.MaxTokens
	}
	if s := req.Context.Sampling; s.Temperature != nil {
		chatReq.Temperature = float32(*s.Temperature)
	}
	if s := req.Context.Sampling; s.TopP != nil {
		chatReq.TopP = float32(*s.TopP)
	}
	if len(req.Context.Tools) > 0 {
		chatReq.Tools = a.convertTools(req.Context.Tools)
	}
	if tc := req.Context.ToolChoice; tc != nil {
		switch tc.Mode {
		case "none", "auto", "required":
			chatReq.ToolChoice = tc.Mode
		default:
			if tc.Name != "" {
				chatReq.ToolChoice = openai.ToolChoice{
					Type:     openai.ToolTypeFunction,
					Function: openai.ToolFunction{Name: tc.Name},
				}
			}
		}
	}
	return chatReq, nil
}

func (a *OpenAIAdapter) convertMessages(c Context) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(c.Messages)+1)
	if c.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.System})
	}
	for _, m := range c.Messages {
		switch {
		case m.IsToolResult:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.ToolContent,
				ToolCallID: m.ToolCallID,
			})
		case m.IsImage:
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: m.ImageURL},
				}},
			})
		case m.Role == RoleUser:
			content, _ := hasCacheControl(m.Content)
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content})
		case m.Role == RoleAssistant:
			content, _ := hasCacheControl(m.Content)
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

func (a *OpenAIAdapter) convertTools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any
		_ = json.Unmarshal(t.Schema, &params)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// processStream accumulates per-index tool-call deltas with a
// ToolCallAssembler and emits normalized StreamItems.
func (a *OpenAIAdapter) processStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- StreamItem) {
	assembler := NewToolCallAssembler()
	for {
		select {
		case <-ctx.Done():
			out <- StreamItem{Err: ctx.Err()}
			return
		default:
		}
		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				if !assembler.Empty() {
					if calls, ferr := assembler.Finalize(); ferr == nil {
						out <- StreamItem{Message: &CompletionMessage{FinishReason: "tool_calls", ToolCallParts: toParts(calls)}}
					} else {
						out <- StreamItem{Err: ferr}
					}
				} else {
					out <- StreamItem{Message: &CompletionMessage{FinishReason: "stop"}}
				}
				return
			}
			out <- StreamItem{Err: fmt.Errorf("providers: %s: %w", a.name, err)}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			out <- StreamItem{Message: &CompletionMessage{Content: choice.Delta.Content}}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			assembler.Add(ToolCallPart{Index: idx, Name: tc.Function.Name, CallID: tc.ID, ArgumentsPart: tc.Function.Arguments})
		}
		if choice.FinishReason == "tool_calls" {
			calls, ferr := assembler.Finalize()
			if ferr != nil {
				out <- StreamItem{Err: ferr}
				return
			}
			out <- StreamItem{Message: &CompletionMessage{FinishReason: "tool_calls", ToolCallParts: toParts(calls)}}
			return
		}
		if choice.FinishReason != "" {
			usage := (*Usage)(nil)
			if resp.Usage != nil {
				usage = &Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
			}
			out <- StreamItem{Message: &CompletionMessage{FinishReason: string(choice.FinishReason), Usage: usage}}
			return
		}
	}
}

func toParts(calls []ToolCallFull) []ToolCallPart {
	parts := make([]ToolCallPart, 0, len(calls))
	for i, c := range calls {
		parts = append(parts, ToolCallPart{Index: i, Name: c.Name, CallID: c.CallID, ArgumentsPart: string(c.Arguments)})
	}
	return parts
}

func openAIStatusCode(err error) int {
	var apiErr *openai.APIError
	if asErr(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}

func asErr(err error, target **openai.APIError) bool {
	for err != nil {
		if ae, ok := err.(*openai.APIError); ok {
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

func wrapOpenAIStatus(name string, err error, status int) error {
	if status == 0 {
		return fmt.Errorf("providers: %s: %w", name, err)
	}
	return fmt.Errorf("providers: %s: POST /chat/completions [%s]: %w", name, strconv.Itoa(status), err)
}

var _ = http.StatusTooManyRequests
