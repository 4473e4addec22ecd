package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tagreview/internal/api"
	"github.com/tagreview/internal/config"
	"github.com/tagreview/internal/logging"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the TagReview API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides the configuration)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	fmt.Printf("Starting TagReview API server on %s:%d...\n", cfg.Server.Host, cfg.Server.Port)

	server, err := api.NewServer(cfg)
	if err != nil {
		return err
	}
	return server.Start()
}
