package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/mcmassia/nexusdrive/internal"
	pkgconfig "github.com/mcmassia/nexusdrive/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func importArchive(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: %s", cmd.ArgsUsage)
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	res, err := internal.ImportFile(ctx, path, cmd.Bool("overwrite"), append(opts, internal.WithLogOutput(os.Stderr))...)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return printJSON(res)
}

func revert(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	res, err := internal.RevertLast(ctx, append(opts, internal.WithLogOutput(os.Stderr))...)
	if err != nil {
		return fmt.Errorf("revert: %w", err)
	}
	return printJSON(res)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:   "nexusdrive",
		Usage:  "Bulk importer for Markdown vault archives into a typed knowledge store",
		Action: serve,
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
				Name:   "serve",
				Usage:  "Run the HTTP API and the inbox watcher",
				Action: serve,
			},
			{
				Name:      "import",
				Usage:     "Import a vault archive and print the summary",
				ArgsUsage: "<archive.zip>",
				Action:    importArchive,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Re-import notes whose title already exists",
					},
				},
			},
			{
				Name:   "revert",
				Usage:  "Undo the most recent import",
				Action: revert,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the import tools over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
