// ABOUTME: Watch command keeps the index in sync with a directory
// ABOUTME: Appends new and modified .txt/.md files until interrupted
package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/watcher"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var (
		debounce    time.Duration
		initialScan bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index .txt/.md files as they change",
		Long: `Watch a directory and append new or modified .txt/.md files
to the index. Bursts of changes are batched after a quiet period.

Modified files are appended again as new documents; run
"askdocs ingest --rebuild" to drop stale chunks.`,
		Example: `  askdocs watch ./docs
  askdocs watch --scan=false --debounce 5s ./docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			w, err := watcher.New(args[0], a.Service, watcher.Options{
				Debounce:    debounce,
				InitialScan: initialScan,
				Logger:      a.Logger,
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period before indexing changes")
	cmd.Flags().BoolVar(&initialScan, "scan", true, "Index files already in the directory on start")

	return cmd
}
