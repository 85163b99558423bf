package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	campaignapp "github.com/civicstack/campaign-server/internal/app"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the campaign API server",
		Long: `Start the campaign API server.

Without --config the server stores its data in a local SQLite file and creates
the schema at startup. A configuration file (YAML) selects PostgreSQL, server
timeouts and telemetry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	cmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")

	for _, name := range []string{"address", "config"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}
	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return err
	}

	opts := []campaignapp.CampaignAppOptions{campaignapp.WithConfig(cfg)}
	if address := v.GetString("address"); address != "" {
		opts = append(opts, campaignapp.WithAddress(address))
	}

	app, err := campaignapp.NewCampaignApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	slog.Info("Starting campaign API server", "address", app.GetHTTPServer().Addr)
	startErr := app.Start()
	if startErr != nil {
		slog.Error("Server stopped with error", "error", startErr)
	}

	return errors.Join(startErr, app.Stop(defaultGracefulTimeout))
}
