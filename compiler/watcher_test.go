package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	config := WatchConfig{
		DebounceDelay:  "100ms",
		FileExtensions: []string{"md", ".HTML"},
		ExcludeDirs:    []string{"node_modules"},
	}

	watcher, err := NewWatcher(config, tmpDir, quietLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if !watcher.extensions[".md"] {
		t.Error("expected .md extension to be watched")
	}
	if !watcher.extensions[".html"] {
		t.Error("expected .html extension to be watched")
	}
	if !watcher.excludes["node_modules"] {
		t.Error("expected node_modules to be excluded")
	}
}

func TestWatchConfig_GetDebounceDelay(t *testing.T) {
	tests := []struct {
		name   string
		delay  string
		expect time.Duration
	}{
		{"valid duration", "100ms", 100 * time.Millisecond},
		{"empty string uses default", "", 500 * time.Millisecond},
		{"invalid duration uses default", "invalid", 500 * time.Millisecond},
		{"negative duration uses default", "-1s", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := WatchConfig{DebounceDelay: tt.delay}
			if got := config.GetDebounceDelay(); got != tt.expect {
				t.Errorf("GetDebounceDelay() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestDefaultWatchConfig(t *testing.T) {
	config := DefaultWatchConfig()

	if config.DebounceDelay != "500ms" {
		t.Errorf("unexpected default debounce delay: %s", config.DebounceDelay)
	}
	if len(config.FileExtensions) != 4 {
		t.Errorf("expected 4 default extensions, got %v", config.FileExtensions)
	}
}

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	config := WatchConfig{
		DebounceDelay:  "50ms",
		FileExtensions: []string{".md"},
		ExcludeDirs:    []string{"node_modules"},
	}
	watcher, err := NewWatcher(config, dir, quietLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Stop() })

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)
	return watcher
}

func expectEvent(t *testing.T, w *Watcher, op WatchOperation, path string) {
	t.Helper()
	select {
	case event := <-w.Events():
		if event.Operation != op {
			t.Errorf("expected %s operation, got %s", op, event.Operation)
		}
		if event.Path != path {
			t.Errorf("expected path %s, got %s", path, event.Path)
		}
	case <-time.After(time.Second):
		t.Errorf("timeout waiting for %s event", op)
	}
}

func expectNoEvent(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case event := <-w.Events():
		t.Errorf("unexpected event %s %s", event.Operation, event.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_FileCreation(t *testing.T) {
	tmpDir := t.TempDir()
	watcher := startWatcher(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "async-parallel.md"), []byte("# Parallel\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	expectEvent(t, watcher, WatchOpCreate, "async-parallel.md")
}

func TestWatcher_FileModification(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "async-parallel.md")
	if err := os.WriteFile(testFile, []byte("# Initial"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	watcher := startWatcher(t, tmpDir)

	if err := os.WriteFile(testFile, []byte("# Modified\n\nMore text."), 0644); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}
	expectEvent(t, watcher, WatchOpModify, "async-parallel.md")
}

func TestWatcher_UnchangedContentIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "async-parallel.md")
	if err := os.WriteFile(testFile, []byte("# Same"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	watcher := startWatcher(t, tmpDir)

	if err := os.WriteFile(testFile, []byte("# Same"), 0644); err != nil {
		t.Fatalf("failed to rewrite test file: %v", err)
	}
	expectNoEvent(t, watcher)
}

func TestWatcher_FileDeletion(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "async-parallel.md")
	if err := os.WriteFile(testFile, []byte("# Doomed"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	watcher := startWatcher(t, tmpDir)

	if err := os.Remove(testFile); err != nil {
		t.Fatalf("failed to remove test file: %v", err)
	}
	expectEvent(t, watcher, WatchOpDelete, "async-parallel.md")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "node_modules"), 0755); err != nil {
		t.Fatal(err)
	}

	watcher := startWatcher(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "node_modules", "pkg.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	expectNoEvent(t, watcher)
}
