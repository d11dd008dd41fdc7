// Package images picks the preview image written alongside a model export.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dtnitsch/vincenzo/internal/common"
	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/assets"
	"github.com/dtnitsch/vincenzo/pkg/extractor"
)

const maxImageBytes = 32 << 20

// Downloader is the part of the fetcher the selector needs.
type Downloader interface {
	GetBytes(ctx context.Context, rawURL string, limit int64) ([]byte, string, error)
}

// Options controls candidate discovery and validation.
type Options struct {
	Hosts       []string
	Criteria    models.ImageCriteria
	APIFallback bool
	APIBase     string
}

// OptionsFromConfig threads the loaded configuration into selector options.
func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		Hosts:       cfg.ImageHosts,
		Criteria:    cfg.ImageCriteria(),
		APIFallback: cfg.APIFallback,
		APIBase:     cfg.APIBase,
	}
}

type Selector struct {
	dl     Downloader
	opts   Options
	logger *slog.Logger
}

func NewSelector(dl Downloader, opts Options, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.APIBase == "" {
		opts.APIBase = models.DefaultAPIBase
	}
	return &Selector{dl: dl, opts: opts, logger: logger}
}

// Select returns the first candidate that downloads and validates, trying each
// candidate once in order. It never fails: with no usable candidate the
// bundled placeholder is returned.
func (s *Selector) Select(ctx context.Context, page *models.Page) *models.PreviewImage {
	candidates := Candidates(page, s.opts.Hosts)
	if len(candidates) == 0 && s.opts.APIFallback {
		if u, err := s.apiImage(ctx, page.URL); err != nil {
			s.logger.Warn("preview lookup via API failed", "url", page.URL, "error", err)
		} else if u != "" {
			candidates = append(candidates, u)
		}
	}
	s.logger.Debug("preview candidates", "url", page.URL, "count", len(candidates))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			break
		}
		data, contentType, err := s.dl.GetBytes(ctx, c, maxImageBytes)
		if err != nil {
			s.logger.Info("preview candidate failed", "candidate", c, "error", err)
			continue
		}
		if err := Validate(data, contentType, s.opts.Criteria); err != nil {
			s.logger.Info("preview candidate rejected", "candidate", c, "error", err)
			continue
		}
		return &models.PreviewImage{Data: data, SourceURL: c, ContentType: contentType}
	}

	s.logger.Info("using default preview image", "url", page.URL, "candidates", len(candidates))
	return Default()
}

// Default returns the bundled placeholder.
func Default() *models.PreviewImage {
	return &models.PreviewImage{Data: assets.DefaultImage(), IsDefault: true, ContentType: "image/png"}
}

// apiImage asks the public models API for the first image of the page's version.
func (s *Selector) apiImage(ctx context.Context, pageURL string) (string, error) {
	modelID, versionID := common.ModelIDs(pageURL)
	if modelID == 0 {
		return "", nil
	}

	apiURL := fmt.Sprintf("%s/api/v1/models/%d", strings.TrimRight(s.opts.APIBase, "/"), modelID)
	data, _, err := s.dl.GetBytes(ctx, apiURL, 0)
	if err != nil {
		return "", err
	}

	var m extractor.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("failed to decode API response: %w", err)
	}
	if len(m.ModelVersions) == 0 {
		return "", nil
	}

	chosen := &m.ModelVersions[0]
	for i := range m.ModelVersions {
		if versionID != 0 && m.ModelVersions[i].ID == versionID {
			chosen = &m.ModelVersions[i]
			break
		}
	}
	if len(chosen.Images) == 0 {
		return "", nil
	}
	return chosen.Images[0].BestURL(), nil
}
