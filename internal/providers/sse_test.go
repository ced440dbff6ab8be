package providers

import (
	"strings"
	"testing"
)

func TestParseSSEBasic(t *testing.T) {
	body := "event: message\ndata: {\"a\":1}\n\nevent: message\ndata: {\"a\":2}\n\ndata: [DONE]\n\n"
	var events []sseEvent
	if err := parseSSE(strings.NewReader(body), func(e sseEvent) error {
		events = append(events, e)
		return nil
	}); err != nil {
		t.Fatalf("parseSSE: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Data != `{"a":1}` {
		t.Errorf("events[0].Data = %q", events[0].Data)
	}
}

func TestParseSSEMultilineData(t *testing.T) {
	body := "data: line1\ndata: line2\n\n"
	var got string
	if err := parseSSE(strings.NewReader(body), func(e sseEvent) error {
		got = e.Data
		return nil
	}); err != nil {
		t.Fatalf("parseSSE: %v", err)
	}
	if got != "line1\nline2" {
		t.Errorf("Data = %q, want joined multi-line", got)
	}
}

func TestParseSSEEmptyTerminates(t *testing.T) {
	body := "data: \n\ndata: should-not-appear\n\n"
	var count int
	if err := parseSSE(strings.NewReader(body), func(e sseEvent) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("parseSSE: %v", err)
	}
	if count != 0 {
		t.Errorf("expected stream to terminate on empty data, got %d events", count)
	}
}
