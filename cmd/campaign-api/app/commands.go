// Package app provides the command line of the campaign API server.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/civicstack/campaign-server/internal/config"
	"github.com/civicstack/campaign-server/internal/versions"
)

// NewRootCmd creates the campaign-api command tree. levelVar is raised to
// debug when --debug is set; it may be nil.
func NewRootCmd(levelVar *slog.LevelVar) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "campaign-api",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Campaign management API server",
		Long: `Campaign management API server provides REST endpoints for citizens, campaigns,
volunteers, donations, outreach and canvassing records.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if levelVar != nil && v.GetBool("debug") {
				levelVar.Set(slog.LevelDebug)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newEntitiesCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(out, string(output))
				return err
			}

			_, err = fmt.Fprintf(out, "campaign-api %s\n  commit: %s\n  built: %s\n  go: %s\n  platform: %s\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

// loadConfig reads the file at path, or returns the default SQLite
// configuration when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("No configuration file given, using defaults")
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", path, "driver", cfg.Database.GetDriver())
	return cfg, nil
}
