package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// workflowFile is the on-disk YAML shape of a Workflow (spec §6 "Workflow
// file"): top-level keys variables, agents, handovers.
type workflowFile struct {
	Variables map[string]any       `yaml:"variables"`
	Agents    []workflowAgentFile  `yaml:"agents"`
	Handovers map[string][]string  `yaml:"handovers"`
}

type workflowAgentFile struct {
	ID             string              `yaml:"id"`
	Model          string              `yaml:"model"`
	Tools          []string            `yaml:"tools"`
	Subscribe      []string            `yaml:"subscribe"`
	SystemPrompt   string              `yaml:"system_prompt"`
	UserPrompt     string              `yaml:"user_prompt"`
	Ephemeral      bool                `yaml:"ephemeral"`
	MaxWalkerDepth int                 `yaml:"max_walker_depth"`
	ToolSupported  bool                `yaml:"tool_supported"`
	Transforms     []workflowTransform `yaml:"transforms"`
}

type workflowTransform struct {
	Kind       string `yaml:"kind"` // "summarize" or "enhance_user_prompt"
	AgentID    string `yaml:"agent_id"`
	TokenLimit int    `yaml:"token_limit,omitempty"`
	InputKey   string `yaml:"input_key"`
}

// LoadWorkflowFile searches for name starting in dir, then walking up to
// ancestor directories (spec §6: "first searches for the file by name in
// the current directory, then walks up to ancestors"). If no such file is
// found anywhere up to the filesystem root, a new empty workflow file is
// written at filepath.Join(dir, name) and an empty Workflow is returned,
// matching spec §6's "if not found, a new empty file is written at the
// originally requested path." Grounded on internal/config/loader.go's
// recursive-include resolution and internal/templates/discovery.go's
// upward file-discovery walk, generalized into an ancestor search.
func LoadWorkflowFile(dir, name string) (*Workflow, string, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("orchestrator: resolve workflow dir: %w", err)
	}

	for current := start; ; {
		candidate := filepath.Join(current, name)
		if data, err := os.ReadFile(candidate); err == nil {
			wf, err := parseWorkflowYAML(data)
			if err != nil {
				return nil, candidate, fmt.Errorf("orchestrator: parse %s: %w", candidate, err)
			}
			return wf, candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	originalPath := filepath.Join(start, name)
	empty := &workflowFile{Variables: map[string]any{}, Handovers: map[string][]string{}}
	out, err := yaml.Marshal(empty)
	if err != nil {
		return nil, originalPath, fmt.Errorf("orchestrator: marshal empty workflow: %w", err)
	}
	if err := os.WriteFile(originalPath, out, 0o644); err != nil {
		return nil, originalPath, fmt.Errorf("orchestrator: write empty workflow: %w", err)
	}
	return &Workflow{Variables: map[string]any{}, Handovers: map[FlowId][]FlowId{}}, originalPath, nil
}

func parseWorkflowYAML(data []byte) (*Workflow, error) {
	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, err
	}

	w := &Workflow{
		Variables: wf.Variables,
		Handovers: map[FlowId][]FlowId{},
	}
	if w.Variables == nil {
		w.Variables = map[string]any{}
	}

	for _, a := range wf.Agents {
		agent := Agent{
			ID:             AgentId(a.ID),
			Model:          ModelId(a.Model),
			Subscribe:      a.Subscribe,
			SystemPrompt:   a.SystemPrompt,
			UserPrompt:     a.UserPrompt,
			Ephemeral:      a.Ephemeral,
			MaxWalkerDepth: a.MaxWalkerDepth,
			ToolSupported:  a.ToolSupported,
		}
		for _, tn := range a.Tools {
			agent.Tools = append(agent.Tools, ToolName(tn))
		}
		for _, t := range a.Transforms {
			switch t.Kind {
			case "summarize":
				agent.Transforms = append(agent.Transforms, Summarize{
					AgentId:    AgentId(t.AgentID),
					TokenLimit: t.TokenLimit,
					InputKey:   t.InputKey,
				})
			case "enhance_user_prompt":
				agent.Transforms = append(agent.Transforms, EnhanceUserPrompt{
					AgentId:  AgentId(t.AgentID),
					InputKey: t.InputKey,
				})
			}
		}
		w.Agents = append(w.Agents, agent)
	}

	for from, tos := range wf.Handovers {
		fromFlow := parseFlowID(from)
		for _, to := range tos {
			w.Handovers[fromFlow] = append(w.Handovers[fromFlow], parseFlowID(to))
		}
	}

	return w, nil
}

// WorkflowWatcher watches a resolved workflow file path for edits and
// reloads it on change, so a running Orchestrator can pick up handover and
// agent changes without a restart. Grounded on
// internal/templates/registry.go's watcher/watchLoop/debounce shape; a
// single file is watched here instead of a tree of template sources.
type WorkflowWatcher struct {
	path     string
	onChange func(*Workflow, error)
	debounce time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// WatchWorkflowFile starts watching path (as returned by LoadWorkflowFile)
// and invokes onChange with the freshly reloaded Workflow whenever the file
// is written, created, or renamed into place. Reloads are debounced by 250ms
// to collapse editor save bursts, matching the teacher's default debounce.
func WatchWorkflowFile(ctx context.Context, path string, onChange func(*Workflow, error)) (*WorkflowWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create workflow watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("orchestrator: watch workflow dir: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &WorkflowWatcher{path: path, onChange: onChange, debounce: 250 * time.Millisecond, watcher: watcher, cancel: cancel}
	w.wg.Add(1)
	go w.loop(watchCtx)
	return w, nil
}

func (w *WorkflowWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			data, err := os.ReadFile(w.path)
			if err != nil {
				w.onChange(nil, err)
				return
			}
			wf, err := parseWorkflowYAML(data)
			w.onChange(wf, err)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *WorkflowWatcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// parseFlowID parses a YAML flow reference. "agent:<id>" or a bare id names
// an agent; "workflow:<id>" names a nested workflow (spec §3 FlowId).
func parseFlowID(s string) FlowId {
	const workflowPrefix = "workflow:"
	const agentPrefix = "agent:"
	switch {
	case len(s) > len(workflowPrefix) && s[:len(workflowPrefix)] == workflowPrefix:
		return FlowId{Workflow: WorkflowId(s[len(workflowPrefix):])}
	case len(s) > len(agentPrefix) && s[:len(agentPrefix)] == agentPrefix:
		return FlowId{Agent: AgentId(s[len(agentPrefix):])}
	default:
		return FlowId{Agent: AgentId(s)}
	}
}
