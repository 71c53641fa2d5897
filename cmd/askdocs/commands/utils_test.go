// ABOUTME: Tests for shared utility functions used by CLI commands
// ABOUTME: Verifies truncate, formatTime and document file reading
package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harper/askdocs/internal/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"very short maxLen", "hello", 2, "he"},
		{"empty string", "", 10, ""},
		{"unicode truncated with ellipsis", "你好世界你好世界", 5, "你好..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("  leave\n\npolicy\t text "); got != "leave policy text" {
		t.Errorf("oneLine() = %q", got)
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		input    time.Time
		contains string
	}{
		{"just now (seconds ago)", now.Add(-30 * time.Second), "just now"},
		{"minutes ago", now.Add(-5 * time.Minute), "m ago"},
		{"hours ago", now.Add(-3 * time.Hour), "h ago"},
		{"days ago", now.Add(-2 * 24 * time.Hour), "d ago"},
		{"weeks ago (shows date)", now.Add(-14 * 24 * time.Hour), "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTime(tt.input)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("formatTime() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

func TestReadDocumentFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "handbook.txt")
	if err := os.WriteFile(good, []byte("Employees get 20 days of leave."), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	missing := filepath.Join(dir, "missing.txt")

	docs, failed := readDocumentFiles([]string{good, missing, dir})

	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	if docs[0].Metadata[models.MetaSource] != "handbook.txt" {
		t.Errorf("source = %q", docs[0].Metadata[models.MetaSource])
	}
	if docs[0].ID == "" {
		t.Error("document ID should be generated")
	}
	if _, ok := failed[missing]; !ok {
		t.Error("missing file should be reported")
	}
	if _, ok := failed[dir]; !ok {
		t.Error("directory should be reported")
	}
}
