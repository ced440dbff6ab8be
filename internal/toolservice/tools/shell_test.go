package tools

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestShell_RunsCommandAndCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell invocation")
	}
	tool := NewShell(false)
	params, _ := json.Marshal(ShellInput{Command: "echo hello"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("shell failed: err=%v res=%+v", err, res)
	}
	if !strings.Contains(res.Content, `"success":true`) {
		t.Fatalf("expected success:true in %s", res.Content)
	}
	if !strings.Contains(res.Content, "hello") {
		t.Fatalf("expected stdout to contain hello: %s", res.Content)
	}
}

func TestShell_NonZeroExitIsSuccessFalse(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell invocation")
	}
	tool := NewShell(false)
	params, _ := json.Marshal(ShellInput{Command: "exit 1"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Content, `"success":false`) {
		t.Fatalf("expected success:false in %s", res.Content)
	}
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[31mred\x1b[0m text"
	got := stripANSI(in)
	if got != "red text" {
		t.Fatalf("stripANSI(%q) = %q, want %q", in, got, "red text")
	}
}
