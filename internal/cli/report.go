package cli

import (
	"github.com/spf13/cobra"

	"github.com/codex-k8s/nightly/internal/config"
	"github.com/codex-k8s/nightly/internal/engine"
	"github.com/codex-k8s/nightly/internal/nightly"
	"github.com/codex-k8s/nightly/internal/report"
)

// newReportCommand creates the "report" subcommand that re-renders the report from the stored history.
func newReportCommand(opts *Options) *cobra.Command {
	var (
		templatesFile string
		output        string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the status report from the stored history without deploying anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOffline(config.LoadOptions{EnvFile: opts.EnvFile})
			if err != nil {
				return err
			}
			if templatesFile != "" {
				cfg.TemplatesFile = templatesFile
			}
			if output != "" {
				cfg.ReportOutput = output
			}
			logger := commandLogger(cmd, opts, cfg)

			catalog, err := config.LoadCatalog(cfg.TemplatesFile)
			if err != nil {
				return err
			}
			labels := make([]string, 0, len(catalog.Templates))
			for _, t := range catalog.Templates {
				labels = append(labels, nightly.Template{Name: t.Name, DocURL: t.Docs}.Label())
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
			eng := engine.New(engine.Options{
				Store:        store,
				Renderer:     renderer,
				ReportPath:   cfg.ReportOutput,
				GitHubOutput: cfg.GitHubOutput,
				Window:       cfg.WindowDays,
				Logger:       logger,
			})
			_, err = eng.Report(cmd.Context(), labels)
			return err
		},
	}

	cmd.Flags().StringVar(&templatesFile, "templates", "", "Path to a YAML template catalog (overrides NIGHTLY_TEMPLATES_FILE)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report output path (overrides NIGHTLY_REPORT_OUTPUT)")
	return cmd
}
