// ABOUTME: CLI command to index document files
// ABOUTME: Appends by default; --rebuild replaces the whole index
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/core"
)

var ingestRebuild bool

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Index text documents",
		Long: `Chunk, embed and index plain-text documents.

Each file becomes one document with its file name as the source.
Files are appended to the existing index unless --rebuild is given,
which replaces the index with only these files. Unreadable files are
reported and skipped.

Examples:
  askdocs ingest handbook.txt policies/*.md
  askdocs ingest --rebuild docs/*.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "Replace the index instead of appending")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	docs, failed := readDocumentFiles(args)
	for path, err := range failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", path, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no readable documents among %d file(s)", len(args))
	}

	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	mode := core.ModeAppend
	if ingestRebuild {
		mode = core.ModeRebuild
	}

	stats, err := a.Service.Ingest(cmd.Context(), docs, mode)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(cmd, stats)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d document(s), %d chunk(s) added, %d total in %s\n",
		stats.Mode, stats.Documents, stats.Chunks, stats.TotalChunks, a.Store.Location())
	return nil
}
