package cmd

import (
	"fmt"

	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/urfave/cli/v2"

	"github.com/tagreview/internal/config"
	"github.com/tagreview/internal/database"
	"github.com/tagreview/internal/logging"
)

// MigrateCommand returns the CLI command for applying database migrations.
// It applies the application schema first, then the River job queue schema.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory containing migration files",
				Value: "migrations",
			},
			&cli.BoolFlag{
				Name:  "skip-river",
				Usage: "Skip the River job queue schema",
			},
		},
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := c.Context

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, c.String("dir")); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if !c.Bool("skip-river") {
		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			return fmt.Errorf("failed to create river migrator: %w", err)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			return fmt.Errorf("failed to migrate river schema: %w", err)
		}
	}

	fmt.Println("Migrations applied")
	return nil
}
