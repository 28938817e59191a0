package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/ddway2/magnum/pkg/plugin"
)

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins discovered in the plugin directory",
		Long: `Scan the plugin directory and the static registry, then print every
known plugin with its state, version, and dependencies.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var match glob.Glob
			if filter != "" {
				match, err = glob.Compile(filter)
				if err != nil {
					return fmt.Errorf("invalid filter %q: %w", filter, err)
				}
			}

			mgr, err := plugin.New(plugin.InterfaceTag(cfg.Interface), cfg.PluginDirectory())
			if err != nil {
				return err
			}
			defer mgr.Close(cmd.Context()) //nolint:errcheck // nothing loaded yet

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATE\tKIND\tVERSION\tDEPENDENCIES")
			for _, name := range mgr.Names() {
				if match != nil && !match.Match(name) {
					continue
				}
				d, state := mgr.Lookup(name)
				deps := strings.Join(d.Dependencies(), ",")
				if deps == "" {
					deps = "-"
				}
				version := d.Version()
				if version == "" {
					version = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, state, d.Kind(), version, deps)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "glob filter on plugin names")
	return cmd
}
