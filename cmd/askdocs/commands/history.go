// ABOUTME: CLI command to show a session's conversation history
// ABOUTME: Reads turns restored from the history database
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/core"
)

var (
	historySession string
	historyClear   bool
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear a session's history",
		Long: `Show the question/answer turns recorded for a session.

History outlives a single command only when HISTORY_DB_PATH points
at a history database.

Examples:
  askdocs history --session alice
  askdocs history --session alice --clear`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().StringVarP(&historySession, "session", "s", "", "Conversation session id (default \"default\")")
	cmd.Flags().BoolVar(&historyClear, "clear", false, "Forget the session instead of printing it")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	id := core.NormalizeSessionID(historySession)
	if historyClear {
		if err := a.Service.ClearSession(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ cleared session %s\n", id)
		return nil
	}

	turns, err := a.Service.History(id)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(cmd, turns)
	}
	if len(turns) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No history for session %s\n", id)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tROLE\tTEXT")
	for _, turn := range turns {
		fmt.Fprintf(w, "%s\t%s\t%s\n", formatTime(turn.Timestamp), turn.Role, truncate(oneLine(turn.Text), 70))
	}
	return w.Flush()
}
