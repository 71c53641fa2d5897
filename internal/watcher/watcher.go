// ABOUTME: Watches a directory and appends changed .txt/.md files to the index
// ABOUTME: fsnotify events are debounced and flushed as one Append per burst
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harper/askdocs/internal/core"
	"github.com/harper/askdocs/internal/models"
)

// DefaultDebounce is how long the directory must be quiet before changed files are ingested
const DefaultDebounce = 1500 * time.Millisecond

// Ingester is the part of core.Service the watcher needs
type Ingester interface {
	Ingest(ctx context.Context, docs []models.Document, mode string) (models.IngestStats, error)
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	// InitialScan ingests files already in the directory when Start is called
	InitialScan bool
	// OnFlush, if set, is called after every ingestion attempt
	OnFlush func(stats models.IngestStats, err error)
	Logger  *slog.Logger
}

// Watcher monitors one directory for text document changes
type Watcher struct {
	dir      string
	ingester Ingester
	opts     Options
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// debounce state
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
}

// New creates a watcher for dir; call Start to begin watching
func New(dir string, ingester Ingester, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir: %s is not a directory", dir)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		ingester: ingester,
		opts:     opts,
		logger:   logger.With("component", "watcher", "dir", dir),
		fsw:      fsw,
		pending:  make(map[string]struct{}),
	}, nil
}

// IsDocument reports whether path names a file the watcher ingests
func IsDocument(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// Start begins watching. Events are processed until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	if w.opts.InitialScan {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("scan %s: %w", w.dir, err)
		}
		w.mu.Lock()
		for _, e := range entries {
			if !e.IsDir() && IsDocument(e.Name()) {
				w.pending[filepath.Join(w.dir, e.Name())] = struct{}{}
			}
		}
		w.mu.Unlock()
		w.flush()
	}

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("watcher started", "debounce", w.opts.Debounce)
	return nil
}

// Stop shuts down the watcher. Changes still inside the debounce window are dropped.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	_ = w.fsw.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !IsDocument(event.Name) {
		return
	}
	w.schedule(event.Name)
}

// schedule records path and restarts the debounce timer
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
}

// flush reads every pending file and appends the readable ones in one call
func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || w.ctx.Err() != nil {
		return
	}
	sort.Strings(paths)

	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			// Removed or unreadable between the event and the flush
			w.logger.Warn("skipping unreadable file", "path", p, "error", err)
			continue
		}
		docs = append(docs, models.NewDocument("", strings.ToValidUTF8(string(data), ""),
			map[string]string{models.MetaSource: filepath.Base(p)}))
	}
	if len(docs) == 0 {
		return
	}

	stats, err := w.ingester.Ingest(w.ctx, docs, core.ModeAppend)
	if err != nil {
		w.logger.Error("ingest failed", "files", len(docs), "error", err)
	} else {
		w.logger.Info("ingested changed files", "files", len(docs), "chunks", stats.Chunks, "total", stats.TotalChunks)
	}
	if w.opts.OnFlush != nil {
		w.opts.OnFlush(stats, err)
	}
}
