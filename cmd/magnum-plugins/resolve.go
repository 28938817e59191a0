package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddway2/magnum/pkg/errutil"
	"github.com/ddway2/magnum/pkg/plugin"
)

// NewResolveCmd creates the resolve subcommand.
func NewResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME",
		Short: "Print the dependency chain for a plugin",
		Long: `Resolve the ordered set of plugins that must be loaded before NAME,
dependencies first, without loading anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			mgr, err := plugin.New(plugin.InterfaceTag(cfg.Interface), cfg.PluginDirectory())
			if err != nil {
				return err
			}
			defer mgr.Close(cmd.Context()) //nolint:errcheck // nothing loaded

			chain, err := mgr.Resolve(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", errutil.Code(err), err)
			}
			for i, d := range chain {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (%s)\n", i+1, d.Name(), d.Kind())
			}
			return nil
		},
	}
}
