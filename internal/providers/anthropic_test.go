package providers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

// fakeAnthropicStream replays a fixed sequence of raw SSE event bodies
// through the anthropicEventStream interface, so processStream can be
// exercised without a live connection to the Messages API.
type fakeAnthropicStream struct {
	raw     []string
	idx     int
	current anthropic.MessageStreamEventUnion
	err     error
}

func (f *fakeAnthropicStream) Next() bool {
	if f.idx >= len(f.raw) {
		return false
	}
	if err := json.Unmarshal([]byte(f.raw[f.idx]), &f.current); err != nil {
		f.err = err
		return false
	}
	f.idx++
	return true
}

func (f *fakeAnthropicStream) Current() anthropic.MessageStreamEventUnion { return f.current }
func (f *fakeAnthropicStream) Err() error                                 { return f.err }

func drainAnthropicStream(t *testing.T, raw []string) []StreamItem {
	t.Helper()
	stream := &fakeAnthropicStream{raw: raw}
	out := make(chan StreamItem, 16)
	a := &AnthropicAdapter{}
	if err := a.processStream(context.Background(), stream, out); err != nil {
		t.Fatalf("processStream: %v", err)
	}
	close(out)
	var items []StreamItem
	for item := range out {
		items = append(items, item)
	}
	return items
}

func TestAnthropicProcessStreamTextDelta(t *testing.T) {
	raw := []string{
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", world"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}`,
		`{"type":"message_stop"}`,
	}
	items := drainAnthropicStream(t, raw)

	var text string
	var sawUsage, sawStop bool
	for _, it := range items {
		if it.Err != nil {
			t.Fatalf("unexpected error item: %v", it.Err)
		}
		if it.Message.Content != "" {
			text += it.Message.Content
		}
		if it.Message.Usage != nil && it.Message.Usage.OutputTokens == 5 {
			sawUsage = true
		}
		if it.Message.FinishReason == "stop" {
			sawStop = true
		}
	}
	if text != "Hello, world" {
		t.Errorf("assembled text = %q, want %q", text, "Hello, world")
	}
	if !sawUsage {
		t.Error("expected a usage item with OutputTokens=5")
	}
	if !sawStop {
		t.Error("expected a final item with FinishReason=stop")
	}
}

func TestAnthropicProcessStreamToolCall(t *testing.T) {
	raw := []string{
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_01","name":"read_file","input":{}}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"path\":"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"a.go\"}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":12}}`,
	}
	items := drainAnthropicStream(t, raw)

	var final *CompletionMessage
	for _, it := range items {
		if it.Err != nil {
			t.Fatalf("unexpected error item: %v", it.Err)
		}
		if it.Message.FinishReason == "tool_calls" {
			final = it.Message
		}
	}
	if final == nil {
		t.Fatal("expected a final item with FinishReason=tool_calls")
	}
	if len(final.ToolCallParts) != 1 {
		t.Fatalf("expected 1 assembled tool call, got %d", len(final.ToolCallParts))
	}
	part := final.ToolCallParts[0]
	if part.Name != "read_file" || part.CallID != "toolu_01" {
		t.Errorf("tool call = %+v, want name=read_file call_id=toolu_01", part)
	}
	if part.ArgumentsPart != `{"path":"a.go"}` {
		t.Errorf("assembled arguments = %q, want %q", part.ArgumentsPart, `{"path":"a.go"}`)
	}
}

func TestAnthropicProcessStreamErrorEvent(t *testing.T) {
	stream := &fakeAnthropicStream{raw: []string{
		`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`,
	}}
	out := make(chan StreamItem, 4)
	a := &AnthropicAdapter{}
	err := a.processStream(context.Background(), stream, out)
	close(out)
	if err == nil {
		t.Fatal("expected processStream to return an error for an error event")
	}
}

func TestAnthropicConvertMessagesCacheControl(t *testing.T) {
	a := &AnthropicAdapter{}
	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello", ToolCalls: []ToolCallFull{
			{Name: "read_file", CallID: "toolu_02", Arguments: json.RawMessage(`{"path":"b.go"}`)},
		}},
	}
	out, err := a.convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 converted messages, got %d", len(out))
	}
}

func TestAnthropicParseDataURL(t *testing.T) {
	data, mediaType, isBase64 := parseDataURL("data:image/png;base64,Zm9v")
	if !isBase64 || mediaType != "image/png" || data != "Zm9v" {
		t.Errorf("parseDataURL = (%q, %q, %v)", data, mediaType, isBase64)
	}
	data, _, isBase64 = parseDataURL("https://example.com/a.png")
	if isBase64 || data != "https://example.com/a.png" {
		t.Errorf("parseDataURL(http url) = (%q, _, %v)", data, isBase64)
	}
}
