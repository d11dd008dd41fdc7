// Package pipeline runs one export: fetch, extract, select image, write files.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtnitsch/vincenzo/internal/common"
	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/exporter"
	"github.com/dtnitsch/vincenzo/pkg/extractor"
	"github.com/dtnitsch/vincenzo/pkg/fetcher"
	"github.com/dtnitsch/vincenzo/pkg/images"
	"github.com/dtnitsch/vincenzo/pkg/metrics"
)

// Fetcher is the network side of the pipeline.
type Fetcher interface {
	GetPage(ctx context.Context, rawURL string) (*models.Page, error)
	GetBytes(ctx context.Context, rawURL string, limit int64) ([]byte, string, error)
	ResolveFileName(ctx context.Context, fileURL string) (string, error)
}

// Outcome is everything one run produced. Result is always set.
type Outcome struct {
	Result *models.ExportResult
	Record *models.ModelRecord
	Image  *models.PreviewImage
}

type Runner struct {
	cfg       *models.Config
	fetcher   Fetcher
	extractor *extractor.Extractor
	selector  *images.Selector
	logger    *slog.Logger
}

// NewRunner builds a runner with an HTTP fetcher configured from cfg.
func NewRunner(cfg *models.Config, logger *slog.Logger) (*Runner, error) {
	f, err := fetcher.NewFetcher(fetcher.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}
	return NewRunnerWithFetcher(cfg, f, logger), nil
}

// NewRunnerWithFetcher builds a runner around an existing fetcher.
func NewRunnerWithFetcher(cfg *models.Config, f Fetcher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		fetcher:   f,
		extractor: extractor.NewExtractor(logger),
		selector:  images.NewSelector(f, images.OptionsFromConfig(cfg), logger),
		logger:    logger,
	}
}

// OutputDir is where exports are written.
func (r *Runner) OutputDir() string {
	return r.cfg.OutputDir
}

// Run exports the model page at rawURL. Every stage runs once, in order; the
// first failing stage ends the run and its error is returned with the outcome.
func (r *Runner) Run(ctx context.Context, rawURL string) (*Outcome, error) {
	out := &Outcome{Result: &models.ExportResult{Status: models.StatusFailed}}

	pageURL, err := common.ValidateURL(rawURL)
	if err != nil {
		return r.fail(out, rawURL, err)
	}

	start := time.Now()
	page, err := r.fetcher.GetPage(ctx, pageURL)
	metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	if err != nil {
		return r.fail(out, pageURL, err)
	}
	r.logger.Info("fetched page", "url", pageURL, "final_url", page.FinalURL, "bytes", len(page.HTML))

	start = time.Now()
	rec, err := r.extractor.Extract(page)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		return r.fail(out, pageURL, err)
	}
	out.Record = rec
	r.resolveFileName(ctx, rec)
	r.logger.Info("extracted metadata", "url", pageURL, "name", rec.Name, "type", rec.Type, "version_id", rec.VersionID)

	start = time.Now()
	img := r.selector.Select(ctx, page)
	metrics.StageDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	out.Image = img
	if img.IsDefault {
		metrics.ImageFallbacksTotal.Inc()
	}

	start = time.Now()
	result, err := exporter.Export(rec, img, r.cfg.OutputDir)
	metrics.StageDuration.WithLabelValues("export").Observe(time.Since(start).Seconds())
	if result != nil {
		out.Result = result
	}
	if err != nil {
		return r.fail(out, pageURL, err)
	}

	metrics.ExportsTotal.WithLabelValues(models.StatusSuccess, "").Inc()
	r.logger.Info("export complete", "url", pageURL, "image", result.ImagePath, "text", result.TextPath, "default_image", img.IsDefault)
	return out, nil
}

// resolveFileName replaces the file name with the server's download name when enabled.
func (r *Runner) resolveFileName(ctx context.Context, rec *models.ModelRecord) {
	if !r.cfg.ResolveFileNames || rec.DownloadURL == "" {
		return
	}
	name, err := r.fetcher.ResolveFileName(ctx, rec.DownloadURL)
	if err != nil {
		r.logger.Warn("could not resolve download file name", "download_url", rec.DownloadURL, "error", err)
		return
	}
	rec.FileName = name
}

func (r *Runner) fail(out *Outcome, rawURL string, err error) (*Outcome, error) {
	kind := models.ErrorKind(err)
	out.Result.Status = models.StatusFailed
	out.Result.ErrorType = kind
	out.Result.Reason = err.Error()
	metrics.ExportsTotal.WithLabelValues(models.StatusFailed, kind).Inc()
	r.logger.Error("export failed", "url", rawURL, "error_type", kind, "error", err)
	return out, err
}
