package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

func migrateCommand() *cli.Command {
	steps := &cli.IntFlag{Name: "steps", Usage: "количество шагов (0 = все для up, 1 для down)"}

	return &cli.Command{
		Name:  "migrate",
		Usage: "миграции схемы PostgreSQL",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Flags: []cli.Flag{steps},
				Action: func(c *cli.Context) error {
					return withPostgres(c, func(store *postgres.Store) error {
						if err := store.MigrateUp(c.Context, c.Int("steps")); err != nil {
							return fmt.Errorf("migrate up: %w", err)
						}
						return printMigrationStatus(c, store)
					})
				},
			},
			{
				Name:  "down",
				Flags: []cli.Flag{steps},
				Action: func(c *cli.Context) error {
					return withPostgres(c, func(store *postgres.Store) error {
						if err := store.MigrateDown(c.Context, c.Int("steps")); err != nil {
							return fmt.Errorf("migrate down: %w", err)
						}
						return printMigrationStatus(c, store)
					})
				},
			},
			{
				Name:  "status",
				Usage: "версия схемы и список миграций",
				Action: func(c *cli.Context) error {
					return withPostgres(c, func(store *postgres.Store) error {
						migrations, err := store.Migrations(c.Context)
						if err != nil {
							return err
						}
						return writeJSON(c.App.Writer, migrations)
					})
				},
			},
		},
	}
}

func withPostgres(c *cli.Context, fn func(store *postgres.Store) error) error {
	dsn := c.String(flagDSN)
	if dsn == "" {
		return cli.Exit("migrate requires --dsn or SHOP_POSTGRES_DSN", 2)
	}

	store, err := postgres.Open(c.Context, dsn, postgres.Options{
		Logger: log.WithField("component", "shopctl-migrate"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("failed to close postgres store")
		}
	}()

	return fn(store)
}

func printMigrationStatus(c *cli.Context, store *postgres.Store) error {
	current, applied, err := store.MigrationStatus(c.Context)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	_, err = fmt.Fprintf(c.App.Writer, "schema version=%d applied=%d\n", current, applied)
	return err
}
