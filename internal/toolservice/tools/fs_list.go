package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSListInput is the JSON shape of fs_list's arguments.
type FSListInput struct {
	Path      string `json:"path" jsonschema:"required,description=Absolute directory path to list."`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Walk subdirectories."`
}

type fileListXML struct {
	XMLName xml.Name      `xml:"file_list"`
	Path    string        `xml:"path,attr"`
	Files   []fileEntryXML `xml:"file"`
}

type fileEntryXML struct {
	Path string `xml:"path,attr"`
}

// FSList implements the fs_list tool (spec §4.3): renders an
// <file_list path="…"><file path="…"/>…</file_list> block. Recursive walks
// obey the minimum of the agent's configured MaxWalkerDepth and the
// request's own effective depth, resolving spec §9's Open Question
// ("prefer to take the minimum of both"): a non-recursive call is depth 1
// regardless of the agent's configured maximum.
type FSList struct{}

// NewFSList returns the fs_list tool.
func NewFSList() *FSList { return &FSList{} }

func (t *FSList) Name() string            { return "fs_list" }
func (t *FSList) Description() string     { return "List files under a directory, optionally recursive." }
func (t *FSList) Schema() json.RawMessage { return mustSchema(FSListInput{}) }

func (t *FSList) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSListInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if err := requireAbsolute(in.Path); err != nil {
		return errResult("%s", err.Error()), nil
	}

	// MaxWalkerDepth is carried via context by the orchestrator's per-agent
	// loop (see WithMaxWalkerDepth below); default to unlimited when
	// absent so fs_list is usable standalone (e.g. via the JSON-RPC server).
	agentMax := maxWalkerDepthFromContext(ctx)
	requested := 1
	if in.Recursive {
		requested = -1 // unlimited unless bounded by agentMax
	}
	depth := effectiveDepth(agentMax, requested)

	var entries []fileEntryXML
	err := walkDepth(in.Path, depth, func(path string) {
		entries = append(entries, fileEntryXML{Path: path})
	})
	if err != nil {
		return errResult("failed to list %s: %v", in.Path, err), nil
	}

	doc := fileListXML{Path: in.Path, Files: entries}
	out, err := xml.Marshal(doc)
	if err != nil {
		return errResult("failed to render listing: %v", err), nil
	}
	return okResult(string(out)), nil
}

// effectiveDepth resolves spec §9's Open Question: the effective depth is
// min(agent.max_walker_depth, requested depth). A requested depth of -1
// means "as deep as the agent allows"; a non-positive agentMax means "no
// agent-imposed bound".
func effectiveDepth(agentMax, requested int) int {
	if agentMax <= 0 {
		if requested <= 0 {
			return -1
		}
		return requested
	}
	if requested <= 0 {
		return agentMax
	}
	if agentMax < requested {
		return agentMax
	}
	return requested
}

// walkDepth walks root up to maxDepth levels (maxDepth<0 means unlimited),
// invoking visit for every regular file found.
func walkDepth(root string, maxDepth int, visit func(path string)) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		visit(root)
		return nil
	}
	return walkDir(root, 1, maxDepth, visit)
}

func walkDir(dir string, depth, maxDepth int, visit func(path string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if maxDepth < 0 || depth < maxDepth {
				if err := walkDir(full, depth+1, maxDepth, visit); err != nil {
					return err
				}
			}
			continue
		}
		visit(full)
	}
	return nil
}

type maxWalkerDepthKey struct{}

// WithMaxWalkerDepth binds the owning agent's configured walker depth onto
// ctx so fs_list can resolve the min() rule without a direct orchestrator
// dependency.
func WithMaxWalkerDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, maxWalkerDepthKey{}, depth)
}

func maxWalkerDepthFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(maxWalkerDepthKey{}).(int); ok {
		return v
	}
	return 0
}
