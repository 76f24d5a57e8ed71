package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/nightly/internal/config"
	"github.com/codex-k8s/nightly/internal/modelz"
)

// newTemplatesCommand creates the "templates" subcommand that checks the catalog against the platform.
func newTemplatesCommand(opts *Options) *cobra.Command {
	var templatesFile string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List public platform templates and check that every catalog entry exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{EnvFile: opts.EnvFile})
			if err != nil {
				return err
			}
			if templatesFile != "" {
				cfg.TemplatesFile = templatesFile
			}
			logger := commandLogger(cmd, opts, cfg)

			catalog, err := config.LoadCatalog(cfg.TemplatesFile)
			if err != nil {
				return err
			}
			platform, err := connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			public, err := platform.client.ListTemplates(cmd.Context(), platform.session)
			if err != nil {
				return err
			}

			if err := printTemplates(cmd, public, catalog); err != nil {
				return err
			}
			_, err = modelz.FilterTemplates(public, wantedTemplates(catalog))
			return err
		},
	}

	cmd.Flags().StringVar(&templatesFile, "templates", "", "Path to a YAML template catalog (overrides NIGHTLY_TEMPLATES_FILE)")
	return cmd
}

func printTemplates(cmd *cobra.Command, public []modelz.PublicTemplate, catalog *config.Catalog) error {
	sorted := append([]modelz.PublicTemplate(nil), public...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFRAMEWORK\tRESOURCE\tNIGHTLY")
	for _, t := range sorted {
		mark := ""
		if _, ok := catalog.Docs(t.Name); ok {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Framework, t.ServerResource, mark)
	}
	return tw.Flush()
}
