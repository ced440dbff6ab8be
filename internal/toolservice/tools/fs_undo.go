package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSUndoInput is the JSON shape of fs_undo's arguments.
type FSUndoInput struct {
	Path string `json:"path" jsonschema:"required,description=Absolute path whose last mutation to undo."`
}

// FSUndo implements the fs_undo tool (spec §4.3, S3): pops the most recent
// snapshot recorded for Path and restores it verbatim.
type FSUndo struct {
	snapshots *toolservice.SnapshotStore
}

// NewFSUndo returns the fs_undo tool.
func NewFSUndo(store *toolservice.SnapshotStore) *FSUndo {
	return &FSUndo{snapshots: store}
}

func (t *FSUndo) Name() string            { return "fs_undo" }
func (t *FSUndo) Description() string     { return "Restore the previous content of a file from its last snapshot." }
func (t *FSUndo) Schema() json.RawMessage { return mustSchema(FSUndoInput{}) }

func (t *FSUndo) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSUndoInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if err := requireAbsolute(in.Path); err != nil {
		return errResult("%s", err.Error()), nil
	}

	snap, ok := t.snapshots.Pop(in.Path)
	if !ok {
		return errResult("%s", toolservice.ErrNoSnapshot(in.Path).Error()), nil
	}

	if err := os.WriteFile(in.Path, snap.ContentBefore, 0o644); err != nil {
		return errResult("failed to restore %s: %v", in.Path, err), nil
	}
	return okResult(fmt.Sprintf("restored %s to snapshot from %s", in.Path, snap.Timestamp.Format("2006-01-02T15:04:05Z07:00"))), nil
}
