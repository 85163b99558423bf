package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/civicstack/campaign-server/database"
	"github.com/civicstack/campaign-server/internal/config"
)

// newMigrator is replaced in tests
var newMigrator = database.NewFromConfig

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing the PostgreSQL schema. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := cmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  campaign-api migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  campaign-api migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

// migrationFlags are the flags shared by the migrate subcommands
type migrationFlags struct {
	cfg      *config.Config
	yes      bool
	numSteps uint
}

func parseMigrationFlags(cmd *cobra.Command) (*migrationFlags, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return nil, fmt.Errorf("failed to get yes flag: %w", err)
	}
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return nil, fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return nil, fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &migrationFlags{cfg: cfg, yes: yes, numSteps: numSteps}, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	flags, err := parseMigrationFlags(cmd)
	if err != nil {
		return err
	}

	m, err := newMigrator(flags.cfg.Database)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	db := flags.cfg.Database
	prompt := fmt.Sprintf("About to apply migrations to %s@%s:%d/%s. Continue?", db.User, db.Host, db.Port, db.Database)
	if !flags.yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
		slog.Info("Migration cancelled by user")
		return nil
	}

	if flags.numSteps == 0 {
		slog.Info("Applying database migrations")
		err = m.Up()
	} else {
		slog.Info("Applying database migrations", "steps", flags.numSteps)
		err = m.Steps(int(flags.numSteps))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("No migrations to apply - database is up to date")
	}

	displayMigrationVersion(m)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	flags, err := parseMigrationFlags(cmd)
	if err != nil {
		return err
	}

	m, err := newMigrator(flags.cfg.Database)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !flags.yes {
		prompt := "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
		if flags.numSteps > 0 {
			prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?",
				flags.numSteps)
		}
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			slog.Info("Migration cancelled by user")
			return fmt.Errorf("migration cancelled by user")
		}
	}

	if flags.numSteps == 0 {
		slog.Warn("Migrating down all steps - this will remove the whole schema")
		err = m.Down()
	} else {
		slog.Info("Migrating down", "steps", flags.numSteps)
		err = m.Steps(-int(flags.numSteps))
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to revert - database is already at the oldest version")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	displayMigrationVersion(m)
	return nil
}

// confirm asks a yes/no question and reports whether the answer was yes
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (yes/no): ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database schema has no migrations applied")
	case err != nil:
		slog.Warn("Failed to get migration version", "error", err)
	case dirty:
		slog.Warn("Current migration version is dirty - manual intervention may be required", "version", version)
	default:
		slog.Info("Current migration version", "version", version)
	}
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Error("Error closing migrator", "error", err)
	}
}
