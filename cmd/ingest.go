package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tagreview/internal/config"
	"github.com/tagreview/internal/database"
	"github.com/tagreview/internal/fam"
	"github.com/tagreview/internal/logging"
	"github.com/tagreview/internal/tagdata"
)

// IngestCommand returns the CLI command for importing a tag sheet
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Import a FAM tag sheet (XLSX or CSV) into a project",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "project",
				Aliases:  []string{"P"},
				Usage:    "Target project ID",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output for this command",
			},
		},
		ArgsUsage: "SHEET_FILE",
		Action:    runIngest,
	}
}

func runIngest(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: sheet file")
	}

	sheetPath := c.Args().Get(0)
	projectID := c.Int64("project")
	verbose := c.Bool("verbose")

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	payload, err := os.ReadFile(sheetPath)
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tagStore := tagdata.NewStore(db)
	project, err := tagStore.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to look up project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %d does not exist", projectID)
	}

	if verbose {
		fmt.Printf("Importing %s into project %q...\n", sheetPath, project.Name)
	}

	ingestor := fam.NewIngestor(tagStore, fam.NewStore(db))
	run, err := ingestor.IngestSheet(ctx, projectID, filepath.Base(sheetPath), payload)
	if err != nil {
		return fmt.Errorf("failed to import sheet: %w", err)
	}

	fmt.Printf("Import %s: status=%s rows=%d failed=%d\n", run.ID, run.Status, run.RowsTotal, run.RowsFailed)
	if run.Detail != nil {
		fmt.Printf("Detail: %s\n", *run.Detail)
	}
	return nil
}
