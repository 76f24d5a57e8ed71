// Package cli defines the command-line interface for the nightly runner.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/nightly/internal/config"
	"github.com/codex-k8s/nightly/internal/logging"
)

const (
	// defaultEnvFile is the optional dotenv file read before the environment.
	defaultEnvFile = ".env"
	// logLevelEnv sets the log level when --log-level is not given.
	logLevelEnv = "NIGHTLY_LOG_LEVEL"
)

// Options stores global CLI options shared between commands.
type Options struct {
	EnvFile  string
	LogLevel logging.Level
	// levelExplicit is set when --log-level was passed on the command line.
	levelExplicit bool
	// stderr receives log output.
	stderr io.Writer
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	return execute(context.Background(), args, logger, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, logger *slog.Logger, stdout, stderr io.Writer) error {
	if logger == nil {
		logger = logging.NewLogger(stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		EnvFile:  defaultEnvFile,
		LogLevel: logging.LevelInfo,
		stderr:   stderr,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	return rootCmd.ExecuteContext(ctx)
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nightly",
		Short:         "nightly validates deployment templates end to end",
		Long:          "nightly deploys every configured platform template, waits for it to become ready, records the outcome in a rolling history and renders a status report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			value := cmd.Flag("log-level").Value.String()
			opts.levelExplicit = cmd.Flag("log-level").Changed
			if !opts.levelExplicit {
				if fromEnv := strings.TrimSpace(os.Getenv(logLevelEnv)); fromEnv != "" {
					value = fromEnv
				}
			}
			level := logging.ParseLevel(value)
			opts.LogLevel = level
			logger = logging.NewLogger(opts.stderr, level)
			cmd.SetContext(withLogger(cmd.Context(), logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "Path to an optional .env file with configuration variables")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCommand(opts),
		newPurgeCommand(opts),
		newReportCommand(opts),
		newTemplatesCommand(opts),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}

// commandLogger returns the context logger, rebuilt at the configured level when the
// level came from the .env file rather than the flag or the process environment.
func commandLogger(cmd *cobra.Command, opts *Options, cfg *config.Config) *slog.Logger {
	logger := LoggerFromContext(cmd.Context())
	if opts.levelExplicit || cfg == nil || strings.TrimSpace(cfg.LogLevel) == "" {
		return logger
	}
	level := logging.ParseLevel(cfg.LogLevel)
	if level == opts.LogLevel {
		return logger
	}
	opts.LogLevel = level
	return logging.NewLogger(opts.stderr, level)
}
