// ABOUTME: Tests for the directory watcher
// ABOUTME: Uses a real fsnotify watcher on t.TempDir with a short debounce
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harper/askdocs/internal/logging"
	"github.com/harper/askdocs/internal/models"
	"github.com/harper/askdocs/internal/testutil"
)

type flushResult struct {
	stats models.IngestStats
	err   error
}

func startWatcher(t *testing.T, dir string, ingester Ingester, initialScan bool) <-chan flushResult {
	t.Helper()
	flushes := make(chan flushResult, 10)
	w, err := New(dir, ingester, Options{
		Debounce:    50 * time.Millisecond,
		InitialScan: initialScan,
		OnFlush:     func(s models.IngestStats, err error) { flushes <- flushResult{s, err} },
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return flushes
}

func waitFlush(t *testing.T, flushes <-chan flushResult) flushResult {
	t.Helper()
	select {
	case r := <-flushes:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingestion")
		return flushResult{}
	}
}

func TestIsDocument(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"notes.txt", true},
		{"README.MD", true},
		{"/docs/policy.md", true},
		{"report.pdf", false},
		{".hidden.txt", false},
		{"draft.txt~", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := IsDocument(tt.path); got != tt.want {
			t.Errorf("IsDocument(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNew_RejectsMissingDir(t *testing.T) {
	fx := testutil.NewService(t)
	if _, err := New(filepath.Join(t.TempDir(), "missing"), fx.Service, Options{}); err == nil {
		t.Error("New() should fail for a missing directory")
	}
}

func TestWatcher_IngestsNewFiles(t *testing.T) {
	fx := testutil.NewService(t)
	dir := t.TempDir()
	flushes := startWatcher(t, dir, fx.Service, false)

	if err := os.WriteFile(filepath.Join(dir, "leave.txt"), []byte("Employees get 20 days of leave."), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := waitFlush(t, flushes)
	if r.err != nil {
		t.Fatalf("ingest error = %v", r.err)
	}
	if r.stats.Mode != "append" || r.stats.Documents != 1 {
		t.Errorf("stats = %+v", r.stats)
	}

	items := fx.Service.Index().Snapshot().Items()
	if len(items) != 1 {
		t.Fatalf("index has %d chunks, want 1", len(items))
	}
	if got := items[0].Chunk.Metadata[models.MetaSource]; got != "leave.txt" {
		t.Errorf("source = %q, want leave.txt", got)
	}
}

func TestWatcher_InitialScan(t *testing.T) {
	fx := testutil.NewService(t)
	dir := t.TempDir()
	for name, body := range map[string]string{
		"a.txt": "alpha document",
		"b.md":  "beta document",
		"c.csv": "not,a,document",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	flushes := startWatcher(t, dir, fx.Service, true)

	r := waitFlush(t, flushes)
	if r.err != nil || r.stats.Documents != 2 {
		t.Fatalf("initial scan = %+v, %v", r.stats, r.err)
	}
	if got := fx.Service.Stats().Chunks; got != 2 {
		t.Errorf("Chunks = %d, want 2", got)
	}
}

// countingIngester records calls without touching an index
type countingIngester struct {
	mu    sync.Mutex
	calls int
	docs  int
}

func (c *countingIngester) Ingest(_ context.Context, docs []models.Document, mode string) (models.IngestStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.docs += len(docs)
	return models.IngestStats{Mode: mode, Documents: len(docs)}, nil
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	ing := &countingIngester{}
	dir := t.TempDir()
	flushes := startWatcher(t, dir, ing, false)

	path := filepath.Join(dir, "burst.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("revision "+string(rune('a'+i))), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	r := waitFlush(t, flushes)
	if r.stats.Documents != 1 {
		t.Errorf("Documents = %d, want one document for repeated writes", r.stats.Documents)
	}

	select {
	case extra := <-flushes:
		t.Errorf("unexpected second flush: %+v", extra.stats)
	case <-time.After(200 * time.Millisecond):
	}
}
