package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSCreateInput is the JSON shape of fs_create's (write) arguments.
type FSCreateInput struct {
	Path      string `json:"path" jsonschema:"required,description=Absolute path to create or overwrite."`
	Content   string `json:"content" jsonschema:"required,description=File content to write."`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema:"description=Allow overwriting an existing file."`
}

// FSCreate implements the fs_create tool (spec §4.3): creates parent
// directories, refuses to clobber an existing file unless Overwrite is
// set, snapshots the prior content before an overwrite, validates syntax
// of the new content, and reports advisory warnings on success.
type FSCreate struct {
	snapshots *toolservice.SnapshotStore
}

// NewFSCreate returns the fs_create tool, snapshotting overwrites into store.
func NewFSCreate(store *toolservice.SnapshotStore) *FSCreate {
	return &FSCreate{snapshots: store}
}

func (t *FSCreate) Name() string            { return "fs_create" }
func (t *FSCreate) Description() string     { return "Create a file, optionally overwriting an existing one." }
func (t *FSCreate) Schema() json.RawMessage { return mustSchema(FSCreateInput{}) }

func (t *FSCreate) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSCreateInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if err := requireAbsolute(in.Path); err != nil {
		return errResult("%s", err.Error()), nil
	}

	existing, err := os.ReadFile(in.Path)
	exists := err == nil
	if exists && !in.Overwrite {
		return errResult("file already exists and overwrite is false; existing content:\n\n%s", string(existing)), nil
	}

	if err := os.MkdirAll(filepath.Dir(in.Path), 0o755); err != nil {
		return errResult("failed to create parent directories for %s: %v", in.Path, err), nil
	}

	if exists {
		t.snapshots.Push(in.Path, existing)
	}

	if err := os.WriteFile(in.Path, []byte(in.Content), 0o644); err != nil {
		return errResult("failed to write %s: %v", in.Path, err), nil
	}

	warnings := toolservice.ValidateSyntax(in.Path, []byte(in.Content))
	msg := fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)
	if len(warnings) > 0 {
		msg += "\n\nwarnings:\n" + strings.Join(warnings, "\n")
	}
	return okResult(msg), nil
}
