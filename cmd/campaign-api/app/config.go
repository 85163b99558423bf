package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicstack/campaign-server/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigValidate,
	})
	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(config.WithConfigPath(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Valid configuration")
	fmt.Fprintf(out, "  Address: %s\n", cfg.Server.GetAddress())
	fmt.Fprintf(out, "  Driver: %s\n", cfg.Database.GetDriver())
	fmt.Fprintf(out, "  Auto-create schema: %t\n", cfg.Schema.ShouldAutoCreate())
	fmt.Fprintf(out, "  Telemetry: %t\n", cfg.Telemetry != nil && cfg.Telemetry.Enabled)
	return nil
}
