package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"vidshare/internal/config"
	"vidshare/migrations"
)

const (
	downFlag    = "down"
	versionFlag = "version"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		Long: `The migrate command applies the embedded schema migrations to the configured
PostgreSQL database. MongoDB needs no migrations; its indexes are created by serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate only applies to the %s driver, configured driver is %s", config.DriverPostgres, cfg.Store.Driver)
			}

			down, _ := cmd.Flags().GetBool(downFlag)
			version, _ := cmd.Flags().GetUint(versionFlag)

			m, err := newMigrator(cfg.Database.MigrationURL())
			if err != nil {
				return err
			}
			defer m.Close()

			switch {
			case down:
				err = m.Down()
			case version > 0:
				err = m.Migrate(version)
			default:
				err = m.Up()
			}
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("Schema already up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			current, dirty, err := m.Version()
			if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
				return fmt.Errorf("read schema version: %w", err)
			}
			log.Info("Migrations applied", "version", current, "dirty", dirty)
			return nil
		},
	}

	cmd.Flags().Bool(downFlag, false, "roll back every migration")
	cmd.Flags().Uint(versionFlag, 0, "the version to migrate to (if omitted the latest schema is used)")
	return cmd
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
