package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

func TestFSCreate_RefusesOverwriteWithoutFlag(t *testing.T) {
	path := writeTemp(t, "original")
	store := toolservice.NewSnapshotStore()
	create := NewFSCreate(store)

	params, _ := json.Marshal(FSCreateInput{Path: path, Content: "new"})
	res, err := create.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result, got %+v", res)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "original" {
		t.Fatalf("file mutated despite missing overwrite flag: %q", got)
	}
}

func TestFSCreate_OverwriteSnapshotsPriorContent(t *testing.T) {
	path := writeTemp(t, "original")
	store := toolservice.NewSnapshotStore()
	create := NewFSCreate(store)
	undo := NewFSUndo(store)

	params, _ := json.Marshal(FSCreateInput{Path: path, Content: "new", Overwrite: true})
	res, err := create.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("overwrite failed: err=%v res=%+v", err, res)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Fatalf("content = %q, want %q", got, "new")
	}

	undoParams, _ := json.Marshal(FSUndoInput{Path: path})
	if _, err := undo.Execute(context.Background(), undoParams); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	restored, _ := os.ReadFile(path)
	if string(restored) != "original" {
		t.Fatalf("restored = %q, want %q", restored, "original")
	}
}

func TestFSCreate_ParentDirsCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "file.txt")
	store := toolservice.NewSnapshotStore()
	create := NewFSCreate(store)

	params, _ := json.Marshal(FSCreateInput{Path: path, Content: "hi"})
	res, err := create.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("create failed: err=%v res=%+v", err, res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestFSRemove_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	store := toolservice.NewSnapshotStore()
	remove := NewFSRemove(store)

	params, _ := json.Marshal(FSRemoveInput{Path: dir})
	res, err := remove.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error removing a directory, got %+v", res)
	}
}

func TestFSRemove_SnapshotsBeforeDelete(t *testing.T) {
	path := writeTemp(t, "content")
	store := toolservice.NewSnapshotStore()
	remove := NewFSRemove(store)
	undo := NewFSUndo(store)

	params, _ := json.Marshal(FSRemoveInput{Path: path})
	res, err := remove.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("remove failed: err=%v res=%+v", err, res)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}

	undoParams, _ := json.Marshal(FSUndoInput{Path: path})
	if _, err := undo.Execute(context.Background(), undoParams); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file restored: %v", err)
	}
	if string(restored) != "content" {
		t.Fatalf("restored = %q, want %q", restored, "content")
	}
}
