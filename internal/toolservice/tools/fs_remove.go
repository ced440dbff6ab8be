package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSRemoveInput is the JSON shape of fs_remove's arguments.
type FSRemoveInput struct {
	Path string `json:"path" jsonschema:"required,description=Absolute path of the regular file to remove."`
}

// FSRemove implements the fs_remove tool (spec §4.3): removes a regular
// file, never a directory, snapshotting its content first so fs_undo can
// restore it.
type FSRemove struct {
	snapshots *toolservice.SnapshotStore
}

// NewFSRemove returns the fs_remove tool.
func NewFSRemove(store *toolservice.SnapshotStore) *FSRemove {
	return &FSRemove{snapshots: store}
}

func (t *FSRemove) Name() string            { return "fs_remove" }
func (t *FSRemove) Description() string     { return "Remove a regular file." }
func (t *FSRemove) Schema() json.RawMessage { return mustSchema(FSRemoveInput{}) }

func (t *FSRemove) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSRemoveInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if err := requireAbsolute(in.Path); err != nil {
		return errResult("%s", err.Error()), nil
	}

	info, err := os.Stat(in.Path)
	if err != nil {
		return errResult("failed to stat %s: %v", in.Path, err), nil
	}
	if info.IsDir() {
		return errResult("%s is a directory, not a regular file", in.Path), nil
	}

	content, err := os.ReadFile(in.Path)
	if err != nil {
		return errResult("failed to read %s before removal: %v", in.Path, err), nil
	}
	t.snapshots.Push(in.Path, content)

	if err := os.Remove(in.Path); err != nil {
		return errResult("failed to remove %s: %v", in.Path, err), nil
	}
	return okResult(fmt.Sprintf("removed %s", in.Path)), nil
}
