package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gapmap/internal"
	pkgconfig "github.com/starford/gapmap/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := internal.SyncOptions{
		FullRefresh: cmd.Bool("full-refresh"),
		ClearCache:  cmd.Bool("clear-cache"),
		Out:         cmd.String("out"),
	}
	if _, err := internal.Sync(ctx, opts, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("sync error: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, version, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "gapmap",
		Usage:   "Sync the R&D gap map catalog from Notion and serve it",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Pull the Notion databases and write the catalog export",
				Action: runSync,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "full-refresh",
						Usage: "Ignore cache watermarks and refetch every database",
					},
					&cli.BoolFlag{
						Name:  "clear-cache",
						Usage: "Delete the disk cache before syncing",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Export path, overriding export.path",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the catalog export over HTTP",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the catalog export to MCP clients over stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
