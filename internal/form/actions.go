package form

import (
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/vincenzo/internal/common"
	"github.com/dtnitsch/vincenzo/pkg/pipeline"
)

// LogFile receives pipeline logs while the terminal form owns the screen.
var LogFile = filepath.Join(os.TempDir(), "vincenzo-form.log")

func FormAction(c *cli.Context) error {
	cfg, logger, err := common.LoadRuntime(c)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}

	logOut, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Error("failed to open log file", "path", LogFile, "error", err)
		os.Exit(2)
	}
	defer logOut.Close()
	logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: common.LogLevel(cfg.LogLevel, c.Bool("quiet"))}))

	runner, err := pipeline.NewRunner(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(2)
	}

	if _, err := tea.NewProgram(NewModel(c.Context, runner)).Run(); err != nil {
		logger.Error("terminal form failed", "error", err)
		os.Exit(2)
	}

	if c.Bool("open") {
		if err := common.OpenPath(cfg.OutputDir); err != nil {
			logger.Warn("failed to open output directory", "dir", cfg.OutputDir, "error", err)
		}
	}
	return nil
}
