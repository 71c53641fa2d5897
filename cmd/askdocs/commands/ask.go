// ABOUTME: CLI command to ask a question about the indexed documents
// ABOUTME: Prints the answer and its sources; history persists when HISTORY_DB_PATH is set
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/models"
)

var askSession string

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Long: `Ask a question about the indexed documents.

The answer is grounded in the most similar chunks and in the
session's earlier questions and answers.

Examples:
  askdocs ask "What is the leave policy?"
  askdocs ask --session alice "And for part-time staff?"
  askdocs ask --format json "Who approves expenses?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVarP(&askSession, "session", "s", "", "Conversation session id (default \"default\")")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	result, err := a.Service.Ask(cmd.Context(), askSession, question)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(cmd, result)
	}
	printAnswer(cmd, result)
	return nil
}

func printAnswer(cmd *cobra.Command, result *models.RetrievalResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Answer)
	if len(result.Sources) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for i, src := range result.Sources {
		label := src.Metadata[models.MetaSource]
		if label == "" {
			label = src.Metadata[models.MetaDocumentID]
		}
		fmt.Fprintf(out, "  %d. [%.2f] %s: %s\n", i+1, src.Score, label, truncate(oneLine(src.PageContent), 80))
	}
}
