package main

import (
	"github.com/spf13/cobra"

	"github.com/ddway2/magnum/internal/config"
	"github.com/ddway2/magnum/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the magnum-plugins CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "magnum-plugins",
		Short: "Magnum plugin manager CLI",
		Long: `magnum-plugins inspects plugin directories, resolves dependency
chains, and smoke-tests that plugins load and instantiate.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("directory", "", "plugin search directory")
	cmd.PersistentFlags().String("interface", "", "interface tag to bind to")
	cmd.PersistentFlags().String("log.format", "", "log format: text or json")
	cmd.PersistentFlags().String("log.level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewResolveCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig resolves configuration for a subcommand and installs the
// default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logging.SetDefault("magnum-plugins", version, cfg.Log.Format, cfg.Log.Level)
	return cfg, nil
}
