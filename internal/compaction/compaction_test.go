package compaction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vanshchauhan21/forge/internal/providers"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		msg      *providers.Message
		expected int
	}{
		{"nil message", nil, 0},
		{"empty message", &providers.Message{}, 0},
		{"short content", &providers.Message{Content: "Hello"}, 2},     // 5 chars / 4 -> 2
		{"exact multiple", &providers.Message{Content: "12345678"}, 2}, // 8 chars / 4 = 2
		{"with tool content", &providers.Message{Content: "Hi", ToolContent: "result"}, 2}, // 8 chars / 4 = 2
		{
			"with tool calls",
			&providers.Message{Content: "Hi", ToolCalls: []providers.ToolCallFull{{Name: "calc", Arguments: []byte(`{}`)}}},
			2, // 2 + 4 + 2 = 8 chars / 4 = 2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := EstimateTokens(tt.msg); result != tt.expected {
				t.Errorf("EstimateTokens() = %d, want %d", result, tt.expected)
			}
		})
	}
}

func TestEstimateMessagesTokens(t *testing.T) {
	messages := []providers.Message{
		{Content: "Hello"},    // 2 tokens
		{Content: "World"},    // 2 tokens
		{Content: "12345678"}, // 2 tokens
	}

	if result := EstimateMessagesTokens(messages); result != 6 {
		t.Errorf("EstimateMessagesTokens() = %d, want 6", result)
	}

	if EstimateMessagesTokens(nil) != 0 {
		t.Error("EstimateMessagesTokens(nil) should return 0")
	}
}

func repeatMessage(n int) providers.Message {
	return providers.Message{Content: strings.Repeat("a", n)}
}

func TestSplitMessagesByTokenShare(t *testing.T) {
	tests := []struct {
		name          string
		messages      []providers.Message
		parts         int
		expectedParts int
	}{
		{"empty messages", nil, 2, 0},
		{"single message", []providers.Message{{Content: "test"}}, 2, 1},
		{"zero parts", []providers.Message{{Content: "test"}}, 0, 1},
		{"one part", []providers.Message{{Content: "test"}, {Content: "test2"}}, 1, 1},
		{"fewer messages than parts", []providers.Message{{Content: "t"}}, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplitMessagesByTokenShare(tt.messages, tt.parts)
			if len(result) != tt.expectedParts {
				t.Errorf("SplitMessagesByTokenShare() returned %d parts, want %d", len(result), tt.expectedParts)
			}
		})
	}

	t.Run("balanced split", func(t *testing.T) {
		messages := make([]providers.Message, 10)
		for i := range messages {
			messages[i] = repeatMessage(40) // 10 tokens each
		}
		parts := SplitMessagesByTokenShare(messages, 2)
		if len(parts) != 2 {
			t.Fatalf("expected 2 parts, got %d", len(parts))
		}
		total := 0
		for _, p := range parts {
			total += len(p)
		}
		if total != 10 {
			t.Errorf("parts should account for all messages, got %d total", total)
		}
	})
}

func TestChunkMessagesByMaxTokens(t *testing.T) {
	messages := []providers.Message{
		repeatMessage(40), // 10 tokens
		repeatMessage(40), // 10 tokens
		repeatMessage(40), // 10 tokens
	}

	chunks := ChunkMessagesByMaxTokens(messages, 15)
	if len(chunks) != 3 {
		t.Fatalf("expected each message in its own chunk at a 15-token budget, got %d chunks", len(chunks))
	}

	chunks = ChunkMessagesByMaxTokens(messages, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk under a generous budget, got %d", len(chunks))
	}

	oversized := []providers.Message{{Content: strings.Repeat("a", 400)}}
	chunks = ChunkMessagesByMaxTokens(oversized, 10)
	if len(chunks) != 1 || len(chunks[0]) != 1 {
		t.Fatalf("an oversized message should still get its own chunk, got %v", chunks)
	}
}

func TestIsOversizedForSummary(t *testing.T) {
	msg := &providers.Message{Content: strings.Repeat("a", 400)}
	if !IsOversizedForSummary(msg, 100) {
		t.Error("400-char message should be oversized against a 100-token window")
	}
	if IsOversizedForSummary(msg, 10000) {
		t.Error("400-char message should fit within a 10000-token window")
	}
	if IsOversizedForSummary(nil, 100) {
		t.Error("nil message is never oversized")
	}
}

// stubSummarizer returns a fixed summary, or an error, and records every
// batch of messages it was asked to summarize.
type stubSummarizer struct {
	summary string
	err     error
	calls   [][]providers.Message
}

func (s *stubSummarizer) GenerateSummary(_ context.Context, messages []providers.Message, _ *SummarizationConfig) (string, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func TestSummarizeChunksSingleChunk(t *testing.T) {
	summarizer := &stubSummarizer{summary: "the summary"}
	messages := []providers.Message{{Content: "hello"}}

	got, err := SummarizeChunks(context.Background(), messages, summarizer, DefaultSummarizationConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the summary" {
		t.Errorf("got %q, want %q", got, "the summary")
	}
	if len(summarizer.calls) != 1 {
		t.Errorf("expected exactly one summarizer call, got %d", len(summarizer.calls))
	}
}

func TestSummarizeChunksMergesMultipleChunks(t *testing.T) {
	summarizer := &stubSummarizer{summary: "chunk summary"}
	messages := []providers.Message{repeatMessage(40), repeatMessage(40), repeatMessage(40)}
	config := &SummarizationConfig{MaxChunkTokens: 10, ContextWindow: DefaultContextWindow}

	got, err := SummarizeChunks(context.Background(), messages, summarizer, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "chunk summary" {
		t.Errorf("merge of identical chunk summaries should collapse to the summary text, got %q", got)
	}
	// Three 10-token messages at a 10-token budget -> 3 chunks + 1 merge call.
	if len(summarizer.calls) != 4 {
		t.Errorf("expected 3 chunk calls + 1 merge call, got %d", len(summarizer.calls))
	}
}

func TestSummarizeChunksPropagatesError(t *testing.T) {
	summarizer := &stubSummarizer{err: errors.New("boom")}
	_, err := SummarizeChunks(context.Background(), []providers.Message{{Content: "x"}}, summarizer, nil)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestSummarizeChunksEmptyMessages(t *testing.T) {
	got, err := SummarizeChunks(context.Background(), nil, &stubSummarizer{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DefaultSummaryFallback {
		t.Errorf("got %q, want fallback %q", got, DefaultSummaryFallback)
	}
}

func TestSummarizeWithFallbackNotesOversizedMessages(t *testing.T) {
	summarizer := &stubSummarizer{summary: "normal summary"}
	config := &SummarizationConfig{ContextWindow: 10, MaxChunkTokens: 100}
	messages := []providers.Message{
		{Role: providers.RoleUser, Content: "short"},
		{Role: providers.RoleAssistant, Content: strings.Repeat("a", 400)},
	}

	got, err := SummarizeWithFallback(context.Background(), messages, summarizer, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "normal summary") || !strings.Contains(got, "Oversized") {
		t.Errorf("expected both the normal summary and an oversized note, got %q", got)
	}
}

func TestSummarizeInStagesSplitsLongHistory(t *testing.T) {
	summarizer := &stubSummarizer{summary: "stage summary"}
	messages := make([]providers.Message, 8)
	for i := range messages {
		messages[i] = repeatMessage(40)
	}
	config := &SummarizationConfig{
		Parts:               2,
		MinMessagesForSplit: 4,
		ContextWindow:       DefaultContextWindow,
		MaxChunkTokens:      1000,
	}

	got, err := SummarizeInStages(context.Background(), messages, summarizer, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "stage summary" {
		t.Errorf("got %q, want %q", got, "stage summary")
	}
	if len(summarizer.calls) < 2 {
		t.Errorf("expected at least 2 summarizer calls across parts, got %d", len(summarizer.calls))
	}
}

func TestSummarizeInStagesBelowMinMessagesFallsThrough(t *testing.T) {
	summarizer := &stubSummarizer{summary: "direct summary"}
	messages := []providers.Message{{Content: "only one"}}
	config := &SummarizationConfig{MinMessagesForSplit: 4, ContextWindow: DefaultContextWindow, MaxChunkTokens: 1000}

	got, err := SummarizeInStages(context.Background(), messages, summarizer, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "direct summary" {
		t.Errorf("got %q, want %q", got, "direct summary")
	}
}

func TestPruneHistoryForContextShareKeepsRecentMessages(t *testing.T) {
	messages := []providers.Message{
		repeatMessage(40), // 10 tokens, oldest
		repeatMessage(40), // 10 tokens
		repeatMessage(40), // 10 tokens, newest
	}

	result := PruneHistoryForContextShare(messages, 20, 1.0, 0)
	if len(result.Messages) != 2 {
		t.Fatalf("expected the 2 most recent messages to survive a 20-token budget, got %d", len(result.Messages))
	}
	if result.DroppedMessages != 1 {
		t.Errorf("DroppedMessages = %d, want 1", result.DroppedMessages)
	}
	if result.Messages[len(result.Messages)-1].Content != messages[len(messages)-1].Content {
		t.Error("the most recent message must be kept")
	}
}

func TestPruneHistoryForContextShareUnderBudgetKeepsAll(t *testing.T) {
	messages := []providers.Message{{Content: "a"}, {Content: "b"}}
	result := PruneHistoryForContextShare(messages, 10000, 1.0, 0)
	if len(result.Messages) != 2 || result.DroppedMessages != 0 {
		t.Errorf("expected no pruning under budget, got %+v", result)
	}
}

func TestResolveContextWindowTokens(t *testing.T) {
	if got := ResolveContextWindowTokens(8000, 4000); got != 8000 {
		t.Errorf("got %d, want model window 8000", got)
	}
	if got := ResolveContextWindowTokens(0, 4000); got != 4000 {
		t.Errorf("got %d, want default 4000", got)
	}
	if got := ResolveContextWindowTokens(0, 0); got != DefaultContextWindow {
		t.Errorf("got %d, want DefaultContextWindow", got)
	}
}

func TestFormatMessagesForSummaryTagsSpecialMessages(t *testing.T) {
	messages := []providers.Message{
		{Role: providers.RoleUser, Content: "hi"},
		{IsToolResult: true, ToolCallID: "call-1", ToolContent: "42"},
		{IsImage: true, ImageURL: "https://example.com/x.png"},
	}

	out := FormatMessagesForSummary(messages)
	for _, want := range []string{"[user]", "[tool_result call-1]", "[image]"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted output missing %q, got %q", want, out)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q, want unchanged %q", got, "short")
	}
	if got := truncateString("this is long", 4); got != "this..." {
		t.Errorf("got %q, want %q", got, "this...")
	}
}
