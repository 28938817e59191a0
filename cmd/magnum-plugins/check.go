package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ddway2/magnum/pkg/errutil"
	"github.com/ddway2/magnum/pkg/plugin"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check NAME",
		Short: "Load a plugin, instantiate it once, and unload it again",
		Long: `Smoke-test a plugin: load its full dependency chain, create one
instance, release it, and unload. Reports the failing chain link on error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			name := args[0]
			ctx := cmd.Context()

			mgr, err := plugin.New(plugin.InterfaceTag(cfg.Interface), cfg.PluginDirectory())
			if err != nil {
				return err
			}
			defer func() {
				if err := mgr.Close(ctx); err != nil {
					errutil.LogError(slog.Default(), "manager teardown failed", err)
				}
			}()

			inst, err := mgr.Instantiate(ctx, name)
			if err != nil {
				errutil.LogError(slog.Default(), "check failed", err)
				return fmt.Errorf("%s: plugin %q is not usable", errutil.Code(err), name)
			}

			if err := inst.Close(); err != nil {
				return fmt.Errorf("releasing instance of %q: %w", name, err)
			}
			if _, err := mgr.Unload(ctx, name); err != nil {
				return fmt.Errorf("unloading %q: %w", name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (state now %s)\n", name, mgr.State(name))
			return nil
		},
	}
}
