// ABOUTME: Serve command runs the HTTP API
// ABOUTME: Optionally watches a directory and appends changed documents while serving
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/server"
	"github.com/harper/askdocs/internal/watcher"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var (
		port     int
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Routes:
  GET    /health
  GET    /stats
  POST   /chat                   {"chat_id": "...", "message": "..."}
  POST   /documents              {"documents": [{"text": "..."}], "mode": "append|rebuild"}
  POST   /upload                 multipart .txt/.md files
  GET    /sessions/:id/history
  DELETE /sessions/:id`,
		Example: `  askdocs serve
  askdocs serve --port 8080 --watch ./docs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, port, watchDir)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from PORT, 7860)")
	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Directory to watch for .txt/.md changes")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, port int, watchDir string) error {
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if port == 0 {
		port = a.Config.Port
	}

	if watchDir != "" {
		w, err := watcher.New(watchDir, a.Service, watcher.Options{InitialScan: true, Logger: a.Logger})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.New(a.Service, a.Logger)
	return srv.Run(ctx, fmt.Sprintf(":%d", port))
}
