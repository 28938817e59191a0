package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddway2/magnum/pkg/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin.yaml JSON Schema",
		Long: `Generate the JSON Schema describing plugin.yaml manifest files, for
editor integration and CI validation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := plugin.GenerateSchema()
			if err != nil {
				return fmt.Errorf("generating schema: %w", err)
			}

			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return nil
			}
			if err := os.WriteFile(out, schema, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write schema to file instead of stdout")
	return cmd
}
