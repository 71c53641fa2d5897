// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Output formatting and reading document files from disk
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/models"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// oneLine collapses runs of whitespace so text fits a table row
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		mins := int(diff.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%dh ago", hours)
	} else if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("2006-01-02")
}

// printJSON writes v as indented JSON to the command's stdout
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readDocumentFiles reads each path whole as one document.
// Files that cannot be read are returned in failed instead of aborting the batch.
func readDocumentFiles(paths []string) (docs []models.Document, failed map[string]error) {
	failed = make(map[string]error)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			failed[path] = err
			continue
		}
		if info.IsDir() {
			failed[path] = fmt.Errorf("is a directory")
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			failed[path] = err
			continue
		}
		docs = append(docs, models.NewDocument("", strings.ToValidUTF8(string(data), ""),
			map[string]string{models.MetaSource: filepath.Base(path)}))
	}
	return docs, failed
}
