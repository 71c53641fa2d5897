// ABOUTME: Root command, global flags and shared application bootstrap
// ABOUTME: Loads .env and config, configures slog, and builds the App for subcommands
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/askdocs/internal/app"
	"github.com/harper/askdocs/internal/config"
	"github.com/harper/askdocs/internal/logging"
)

var (
	verbose      bool
	quiet        bool
	configPath   string
	outputFormat string
)

// newApp builds the App for a command; tests replace it with fake models
var newApp = app.New

const banner = `
 █████╗ ███████╗██╗  ██╗██████╗  ██████╗  ██████╗███████╗
██╔══██╗██╔════╝██║ ██╔╝██╔══██╗██╔═══██╗██╔════╝██╔════╝
███████║███████╗█████╔╝ ██║  ██║██║   ██║██║     ███████╗
██╔══██║╚════██║██╔═██╗ ██║  ██║██║   ██║██║     ╚════██║
██║  ██║███████║██║  ██╗██████╔╝╚██████╔╝╚██████╗███████║
╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═════╝  ╚═════╝  ╚═════╝╚══════╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "askdocs",
		Short: "Ask questions about your documents",
		Long: banner + `

askdocs indexes documents into a vector index and answers questions
about them with an LLM, remembering each conversation session.

Configuration comes from an optional YAML file (--config), then
environment variables (OPENAI_API_KEY, CHUNK_SIZE, TOP_K, ...).
A .env file in the working directory is loaded first.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format (auto, json)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewServeCmd(),
		NewMCPCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewHistoryCmd(),
		NewStatsCmd(),
		NewWatchCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the layered configuration and sets up the default logger
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	switch {
	case verbose:
		opts.Level = "debug"
	case quiet:
		opts.Level = "warn"
	}

	logger, err := logging.Setup(cmd.ErrOrStderr(), opts)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openApp loads config and builds the App; callers must Close it
func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing askdocs: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
