package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/vincenzo/internal/export"
	"github.com/dtnitsch/vincenzo/internal/form"
	"github.com/dtnitsch/vincenzo/internal/web"
	"github.com/dtnitsch/vincenzo/models"
)

func main() {
	app := &cli.App{
		Name:      "vincenzo",
		Usage:     "export a Civitai model's preview image and metadata to local files",
		ArgsUsage: "[model page URL]",
		Description: "With a URL, exports that model once and exits.\n" +
			"Without one, starts the export form in the browser (or in the terminal with --tui).",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: models.DefaultConfigPath,
				Usage: "config file (JSON or YAML); missing file means defaults",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Value: models.DefaultOutputDir,
				Usage: "directory the .png/.txt pair is written to",
			},
			&cli.StringFlag{
				Name:  "fetch-mode",
				Usage: "page fetch mode: http or browser (headless Chrome)",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "text",
				Usage: "result format for single-URL exports: text, json or yaml",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "open the output directory after exporting",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "use the terminal form instead of the browser form",
			},
			&cli.StringFlag{
				Name:  "addr",
				Value: "127.0.0.1:7860",
				Usage: "listen address for the browser form",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "do not open the browser form automatically",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "only log errors",
			},
		},
		Action: func(c *cli.Context) error {
			switch {
			case c.Args().Len() > 1:
				return cli.Exit("expected a single model page URL", 1)
			case c.Args().Present():
				return export.ExportAction(c)
			case c.Bool("tui"):
				return form.FormAction(c)
			default:
				return web.ServeAction(c)
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
