package cmd

import (
	"errors"
	"fmt"
	"net/url"

	"golang-autotrader/config"
	"golang-autotrader/pkg/common"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsPath string

func getDSN(dbConfig config.Database) string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dbConfig.User, dbConfig.Password),
		Host:   fmt.Sprintf("%s:%d", dbConfig.Host, dbConfig.Port),
		Path:   dbConfig.DBName,
	}
	q := dsn.Query()
	q.Set("sslmode", dbConfig.SSLMode)
	dsn.RawQuery = q.Encode()
	return dsn.String()
}

func newMigrate() (*migrate.Migrate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.DB.Driver != common.DRIVER_POSTGRES {
		return nil, fmt.Errorf("migrations need the postgres driver, got %q", cfg.DB.Driver)
	}

	m, err := migrate.New(migrationsPath, getDSN(cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("create migration instance: %w", err)
	}
	return m, nil
}

func runMigrations(cmd *cobra.Command, step func(m *migrate.Migrate) error) (err error) {
	m, err := newMigrate()
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		err = errors.Join(err, srcErr, dbErr)
	}()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, verr := m.Version()
	if errors.Is(verr, migrate.ErrNilVersion) {
		cmd.Println("No migrations applied.")
		return nil
	}
	if verr != nil {
		return verr
	}
	cmd.Printf("Schema at version %d (dirty=%t)\n", version, dirty)
	return nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all available database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, func(m *migrate.Migrate) error { return m.Up() })
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the last database migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, func(m *migrate.Migrate) error { return m.Steps(-1) })
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, func(m *migrate.Migrate) error { return nil })
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema",
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "file://migrations", "migration source URL")
	migrateCmd.AddCommand(upCmd)
	migrateCmd.AddCommand(downCmd)
	migrateCmd.AddCommand(versionCmd)
}
