//go:build integration

// Package integration provides end-to-end integration tests for revisiond.
//
// These tests exercise the full versioning flow over the sqlite backend:
// autosave, save points, branching, merging, diffing, restore, and cleanup.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"revisiond/internal/kv"
	"revisiond/internal/scene"
	"revisiond/internal/version"
)

// TestEnv holds the components under test, backed by a real sqlite file.
type TestEnv struct {
	T      *testing.T
	DBPath string
	Store  kv.Store
	Engine *version.Engine
}

// NewTestEnv opens a fresh sqlite database under a temp dir and builds an
// engine over it.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "revisiond.db")
	store, err := kv.OpenSQLite(path)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := version.NewEngine(store, version.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &TestEnv{T: t, DBPath: path, Store: store, Engine: engine}
}

// Reopen closes the store and opens a fresh engine over the same database
// file, simulating a daemon restart.
func (env *TestEnv) Reopen() *version.Engine {
	env.T.Helper()

	if err := env.Store.Close(); err != nil {
		env.T.Fatalf("failed to close store: %v", err)
	}
	store, err := kv.OpenSQLite(env.DBPath)
	if err != nil {
		env.T.Fatalf("failed to reopen sqlite store: %v", err)
	}
	env.T.Cleanup(func() { store.Close() })

	env.Store = store
	env.Engine = version.NewEngine(store, version.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return env.Engine
}

// Manuscript returns a small three-scene manuscript.
func (env *TestEnv) Manuscript() []scene.Scene {
	return []scene.Scene{
		{ID: "s1", ManuscriptID: "novel-1", Title: "The Letter", Text: "The letter arrived on a Tuesday.", IndexInManuscript: 0, UpdatedAt: 1000},
		{ID: "s2", ManuscriptID: "novel-1", Title: "The Station", Text: "She waited at the station until dusk.", IndexInManuscript: 1, UpdatedAt: 1000},
		{ID: "s3", ManuscriptID: "novel-1", Title: "The Return", Text: "He never came back.", IndexInManuscript: 2, UpdatedAt: 1000},
	}
}

// MustAutoSave runs an autosave and fails the test on error.
func (env *TestEnv) MustAutoSave(scenes []scene.Scene) (string, bool) {
	env.T.Helper()
	id, saved, err := env.Engine.AutoSave("novel-1", scenes)
	if err != nil {
		env.T.Fatalf("AutoSave failed: %v", err)
	}
	return id, saved
}

// MustSavePoint creates a save point and fails the test on error.
func (env *TestEnv) MustSavePoint(scenes []scene.Scene, description string) string {
	env.T.Helper()
	id, err := env.Engine.CreateSavePoint("novel-1", scenes, description)
	if err != nil {
		env.T.Fatalf("CreateSavePoint failed: %v", err)
	}
	return id
}

// AssertEqual fails the test when got != want.
func AssertEqual[T comparable](t *testing.T, want, got T, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %v, got %v", msg, want, got)
	}
}

// AssertTrue fails the test when the condition is false.
func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Error(msg)
	}
}
