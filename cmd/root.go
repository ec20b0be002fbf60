// Package cmd implements the countercurse command line.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/countercurse/countercurse/internal/config"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose bool
	quiet   bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "countercurse",
		Short: "Bleep profanity out of a video's audio track",
		Long: `countercurse transcribes a video's speech, finds words from a
severity-tiered lexicon and overwrites each one with a 1 kHz tone. Several
passes can be chained, each re-transcribing the previous pass's output to
catch words the first transcription missed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress non-error output")

	root.AddCommand(
		newCensorCmd(g),
		newServeCmd(g),
		newLexiconCmd(g),
	)
	return root
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
	}
	return err
}

// setup loads configuration and installs a logger on stderr. The
// --verbose and --quiet flags take precedence over LOG_LEVEL.
func (g *globalFlags) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	switch {
	case g.quiet:
		cfg.LogLevel = "error"
	case g.verbose:
		cfg.LogLevel = "debug"
	}

	logger := cfg.NewLoggerTo(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
