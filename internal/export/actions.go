package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/vincenzo/internal/common"
	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/pipeline"
)

// Runner is the part of the pipeline the export command needs.
type Runner interface {
	Run(ctx context.Context, rawURL string) (*pipeline.Outcome, error)
	OutputDir() string
}

// Output is the structured form printed by --format json|yaml.
type Output struct {
	URL    string               `json:"url" yaml:"url"`
	Result *models.ExportResult `json:"result" yaml:"result"`
	Record *models.ModelRecord  `json:"record,omitempty" yaml:"record,omitempty"`
}

func ExportAction(c *cli.Context) error {
	cfg, logger, err := common.LoadRuntime(c)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}

	runner, err := pipeline.NewRunner(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(2)
	}

	rawURL := c.Args().First()
	runErr := Run(c.Context, os.Stdout, runner, rawURL, c.String("format"))
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(ExitCode(runErr))
	}

	if c.Bool("open") {
		if err := common.OpenPath(runner.OutputDir()); err != nil {
			logger.Warn("failed to open output directory", "dir", runner.OutputDir(), "error", err)
		}
	}
	return nil
}

// Run exports rawURL and prints the outcome to w in the requested format.
// The pipeline error, if any, is returned after the outcome is printed.
func Run(ctx context.Context, w io.Writer, runner Runner, rawURL, format string) error {
	out, runErr := runner.Run(ctx, rawURL)

	var printErr error
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(Output{URL: rawURL, Result: out.Result, Record: out.Record}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, printErr = fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(Output{URL: rawURL, Result: out.Result, Record: out.Record})
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, printErr = w.Write(data)
	default:
		printErr = printText(w, out)
	}

	if runErr != nil {
		return runErr
	}
	return printErr
}

func printText(w io.Writer, out *pipeline.Outcome) error {
	if out.Record != nil {
		fmt.Fprintf(w, "Name: %s\n", out.Record.Name)
		for _, f := range out.Record.Fields() {
			fmt.Fprintf(w, "%s: %s\n", f.Label, f.Value)
		}
		if out.Record.UsageTips != "" {
			fmt.Fprintf(w, "Usage tips: %s\n", out.Record.UsageTips)
		}
	}

	r := out.Result
	if r.Status != models.StatusSuccess {
		_, err := fmt.Fprintf(w, "\nExport failed (%s): %s\n", r.ErrorType, r.Reason)
		return err
	}

	fmt.Fprintf(w, "\nImage: %s\n", r.ImagePath)
	if r.UsedDefaultImage {
		fmt.Fprintln(w, "  (no usable preview on the page, used the default image)")
	}
	_, err := fmt.Fprintf(w, "Text:  %s\ndone~!\n", r.TextPath)
	return err
}

// ExitCode maps a pipeline error to the process exit code: 1 for bad input, 2 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, models.ErrInvalidURL):
		return 1
	default:
		return 2
	}
}
