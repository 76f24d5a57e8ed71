package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/nightly/internal/config"
	"github.com/codex-k8s/nightly/internal/engine"
)

// newPurgeCommand creates the "purge" subcommand that deletes every live deployment of the account.
func newPurgeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every live deployment of the runner account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{EnvFile: opts.EnvFile})
			if err != nil {
				return err
			}
			logger := commandLogger(cmd, opts, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			platform, err := connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			eng := engine.New(engine.Options{Platform: platform.deployments, Logger: logger})
			if err := eng.Purge(ctx); err != nil {
				return err
			}
			logger.Info("purge finished")
			return nil
		},
	}
}
