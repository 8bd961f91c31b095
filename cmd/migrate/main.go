package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/urfave/cli/v2"

	"assetmanager/internal/config"
	"assetmanager/internal/database"
	"assetmanager/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the asset manager postgres schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "migration source URL",
				Value: database.MigrationsSource,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: withMigrate(up),
			},
			{
				Name:      "down",
				Usage:     "roll back N migrations (default 1)",
				ArgsUsage: "[N]",
				Action:    withMigrate(down),
			},
			{
				Name:   "version",
				Usage:  "print the current schema version",
				Action: withMigrate(version),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func withMigrate(fn func(*cli.Context, *migrate.Migrate) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dbConfig, err := database.NewConfig(cfg)
		if err != nil {
			return err
		}
		if dbConfig.Driver != database.DriverPostgres {
			return fmt.Errorf("migrations run against postgres only; DB_DRIVER is %q", dbConfig.Driver)
		}

		m, err := migrate.New(c.String("source"), dbConfig.MigrateURL())
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
		defer func() {
			srcErr, dbErr := m.Close()
			if srcErr != nil {
				logger.Get().Warnf("migrate source close error: %v", srcErr)
			}
			if dbErr != nil {
				logger.Get().Warnf("migrate database close error: %v", dbErr)
			}
		}()

		return fn(c, m)
	}
}

func up(_ *cli.Context, m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	logger.Get().Info("Migrations applied successfully")
	return nil
}

func down(c *cli.Context, m *migrate.Migrate) error {
	steps := 1
	if c.Args().Present() {
		n, err := strconv.Atoi(c.Args().First())
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step count %q", c.Args().First())
		}
		steps = n
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Get().Infof("Rolled back %d migration(s)", steps)
	return nil
}

func version(_ *cli.Context, m *migrate.Migrate) error {
	v, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Get().Info("No migrations applied")
			return nil
		}
		return fmt.Errorf("failed to get version: %w", err)
	}
	logger.Get().Infof("Version: %d, Dirty: %v", v, dirty)
	return nil
}
