package common

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/vincenzo/models"
)

// LoadRuntime reads the config file named by --config, applies command-line
// overrides and builds the logger every front end shares.
func LoadRuntime(c *cli.Context) (*models.Config, *slog.Logger, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, NewLogger("", c.Bool("quiet")), fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("output-dir") || cfg.OutputDir == models.DefaultOutputDir {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("fetch-mode") {
		switch mode := c.String("fetch-mode"); mode {
		case models.FetchModeHTTP, models.FetchModeBrowser:
			cfg.FetchMode = mode
		default:
			return nil, NewLogger("", c.Bool("quiet")), fmt.Errorf("unknown fetch mode %q (want %s or %s)", mode, models.FetchModeHTTP, models.FetchModeBrowser)
		}
	}

	logger := NewLogger(cfg.LogLevel, c.Bool("quiet"))
	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "path", c.String("config"), "warning", w)
	}
	return cfg, logger, nil
}
