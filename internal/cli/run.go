package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codex-k8s/nightly/internal/config"
	"github.com/codex-k8s/nightly/internal/engine"
	"github.com/codex-k8s/nightly/internal/modelz"
	"github.com/codex-k8s/nightly/internal/nightly"
	"github.com/codex-k8s/nightly/internal/report"
)

// newRunCommand creates the "run" subcommand that performs the full nightly sweep.
func newRunCommand(opts *Options) *cobra.Command {
	var templatesFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy every catalog template, record outcomes and render the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{EnvFile: opts.EnvFile})
			if err != nil {
				return err
			}
			if templatesFile != "" {
				cfg.TemplatesFile = templatesFile
			}
			logger := commandLogger(cmd, opts, cfg).With("run", uuid.NewString())

			catalog, err := config.LoadCatalog(cfg.TemplatesFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			platform, err := connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			public, err := platform.client.ListTemplates(ctx, platform.session)
			if err != nil {
				return err
			}
			templates, err := modelz.FilterTemplates(public, wantedTemplates(catalog))
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			renderer, err := report.NewRenderer(cfg.ReportTemplate, cfg.TimeLimit)
			if err != nil {
				return err
			}

			policy := cfg.Policy()
			logger.Info("nightly run starting", "templates", catalog.Names(), "policy", policy.String())
			controller := nightly.NewController(
				platform.deployments,
				modelz.NewInferenceProber(platform.apiKey),
				policy,
				nightly.WithLogger(logger),
			)
			eng := engine.New(engine.Options{
				Platform:     platform.deployments,
				Lifecycle:    controller,
				Store:        store,
				Renderer:     renderer,
				ReportPath:   cfg.ReportOutput,
				GitHubOutput: cfg.GitHubOutput,
				Window:       cfg.WindowDays,
				Logger:       logger,
			})

			summary, err := eng.Run(ctx, templates)
			if err != nil {
				return err
			}
			if !summary.Healthy() {
				logger.Warn("some templates did not become ready", "ok", summary.OK, "total", summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templatesFile, "templates", "", "Path to a YAML template catalog (overrides NIGHTLY_TEMPLATES_FILE)")
	return cmd
}
