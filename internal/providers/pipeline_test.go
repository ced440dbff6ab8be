package providers

import (
	"regexp"
	"testing"
)

func TestCombineAppliesInOrder(t *testing.T) {
	setModel := func(req CompletionRequest) CompletionRequest {
		req.Model = "a"
		return req
	}
	appendModel := func(req CompletionRequest) CompletionRequest {
		req.Model += "b"
		return req
	}
	combined := Combine(setModel, appendModel)
	got := combined(CompletionRequest{}).Model
	if got != "ab" {
		t.Errorf("Combine order wrong: got %q, want ab", got)
	}
}

func TestWhenModelGatesByRegex(t *testing.T) {
	re := regexp.MustCompile(`^gpt-4o`)
	pipe := WhenModel(re, WithMaxTokens(4000))
	got := pipe(CompletionRequest{Model: "gpt-4o-mini"})
	if got.Context.Sampling.MaxTokens != 4000 {
		t.Errorf("expected transformer applied for matching model")
	}
	got2 := pipe(CompletionRequest{Model: "claude-opus-4"})
	if got2.Context.Sampling.MaxTokens != 0 {
		t.Errorf("expected transformer skipped for non-matching model")
	}
}

func TestExceptWhenModel(t *testing.T) {
	re := regexp.MustCompile(`^o1`)
	tr := ExceptWhenModel(re, DropToolChoice)
	req := CompletionRequest{Model: "o1", Context: Context{ToolChoice: &ToolChoice{Mode: "auto"}}}
	got := tr(req)
	if got.Context.ToolChoice == nil {
		t.Error("o1 should be excepted from DropToolChoice")
	}
	req2 := CompletionRequest{Model: "gpt-4o", Context: Context{ToolChoice: &ToolChoice{Mode: "auto"}}}
	got2 := tr(req2)
	if got2.Context.ToolChoice != nil {
		t.Error("gpt-4o should have ToolChoice dropped")
	}
}

func TestCacheControlLastN(t *testing.T) {
	req := CompletionRequest{Context: Context{Messages: []Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleUser, Content: "two"},
		{Role: RoleUser, Content: "three"},
	}}}
	got := CacheControlLastN(2)(req)
	if _, tagged := hasCacheControl(got.Context.Messages[0].Content); tagged {
		t.Error("first message should not be tagged")
	}
	if _, tagged := hasCacheControl(got.Context.Messages[1].Content); !tagged {
		t.Error("second-to-last message should be tagged")
	}
	if _, tagged := hasCacheControl(got.Context.Messages[2].Content); !tagged {
		t.Error("last message should be tagged")
	}
}

func TestStripImages(t *testing.T) {
	req := CompletionRequest{Context: Context{Messages: []Message{
		{Role: RoleUser, Content: "hi"},
		{IsImage: true, ImageURL: "http://example.com/x.png"},
	}}}
	got := StripImages(req)
	if len(got.Context.Messages) != 1 {
		t.Fatalf("expected images stripped, got %d messages", len(got.Context.Messages))
	}
}
