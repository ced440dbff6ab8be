package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWorkflowFileParsesAgentsAndHandovers(t *testing.T) {
	dir := t.TempDir()
	content := `
variables:
  greeting: hi
agents:
  - id: writer
    model: gpt-4o
    tools: [fs_create]
    subscribe: [start]
    system_prompt: "you write files"
    user_prompt: "{{.greeting}}"
    transforms:
      - kind: summarize
        agent_id: summarizer
        token_limit: 4000
        input_key: history
  - id: summarizer
    model: gpt-4o-mini
handovers:
  "agent:writer":
    - "agent:summarizer"
`
	path := filepath.Join(dir, "workflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	wf, found, err := LoadWorkflowFile(dir, "workflow.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != path {
		t.Errorf("expected found path %q, got %q", path, found)
	}
	if wf.Variables["greeting"] != "hi" {
		t.Errorf("expected variable greeting=hi, got %v", wf.Variables["greeting"])
	}
	writer, ok := wf.AgentByID("writer")
	if !ok {
		t.Fatal("expected writer agent")
	}
	if len(writer.Tools) != 1 || writer.Tools[0] != "fs_create" {
		t.Errorf("expected writer tools [fs_create], got %v", writer.Tools)
	}
	if len(writer.Transforms) != 1 {
		t.Fatalf("expected one transform, got %d", len(writer.Transforms))
	}
	sum, ok := writer.Transforms[0].(Summarize)
	if !ok {
		t.Fatalf("expected Summarize transform, got %T", writer.Transforms[0])
	}
	if sum.AgentId != "summarizer" || sum.TokenLimit != 4000 {
		t.Errorf("unexpected summarize transform: %+v", sum)
	}
	targets := wf.Handovers[FlowId{Agent: "writer"}]
	if len(targets) != 1 || targets[0].Agent != "summarizer" {
		t.Errorf("expected handover writer->summarizer, got %v", targets)
	}
}

func TestLoadWorkflowFileSearchesAncestors(t *testing.T) {
	root := t.TempDir()
	content := "variables: {}\nagents: []\nhandovers: {}\n"
	if err := os.WriteFile(filepath.Join(root, "workflow.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	_, found, err := LoadWorkflowFile(nested, "workflow.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != filepath.Join(root, "workflow.yaml") {
		t.Errorf("expected ancestor search to find %q, got %q", filepath.Join(root, "workflow.yaml"), found)
	}
}

func TestLoadWorkflowFileWritesEmptyWhenMissing(t *testing.T) {
	dir := t.TempDir()
	wf, found, err := LoadWorkflowFile(dir, "missing.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wf.Agents) != 0 {
		t.Errorf("expected empty workflow, got %d agents", len(wf.Agents))
	}
	if _, err := os.Stat(found); err != nil {
		t.Errorf("expected empty workflow file written at %q: %v", found, err)
	}
}

func TestWatchWorkflowFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	if err := os.WriteFile(path, []byte("variables: {}\nagents: []\nhandovers: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Workflow, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := WatchWorkflowFile(ctx, path, func(wf *Workflow, err error) {
		if err == nil {
			reloaded <- wf
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer watcher.Close()

	updated := "variables:\n  greeting: updated\nagents: []\nhandovers: {}\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case wf := <-reloaded:
		if wf.Variables["greeting"] != "updated" {
			t.Errorf("expected reloaded workflow to see updated variable, got %v", wf.Variables["greeting"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for workflow reload")
	}
}
