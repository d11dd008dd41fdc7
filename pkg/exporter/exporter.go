// Package exporter writes one model's preview image and metadata text file.
package exporter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/storage"
)

const (
	ImageExt = ".png"
	TextExt  = ".txt"
)

// RenderText formats rec as one "Label: value" line per field in export order.
// Identical records always render identical bytes.
func RenderText(rec *models.ModelRecord) []byte {
	var sb strings.Builder
	for _, f := range rec.Fields() {
		sb.WriteString(f.Label)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// Export writes <outputDir>/<base>.png and <outputDir>/<base>.txt, creating
// outputDir when needed and overwriting earlier exports of the same name.
// A failed write leaves any file already written in place.
func Export(rec *models.ModelRecord, img *models.PreviewImage, outputDir string) (*models.ExportResult, error) {
	if rec == nil {
		return nil, errors.New("nil model record")
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: no image data", models.ErrIO)
	}

	base := BaseName(rec.Name)
	result := &models.ExportResult{
		BaseName:         base,
		Status:           models.StatusFailed,
		UsedDefaultImage: img.IsDefault,
	}

	s := &storage.Storage{Dir: outputDir}
	if err := s.EnsureDir(); err != nil {
		return fail(result, err)
	}

	result.Replaced = s.HasFile(base+ImageExt) || s.HasFile(base+TextExt)

	imagePath, err := s.SaveFile(base+ImageExt, img.Data)
	if err != nil {
		return fail(result, err)
	}
	result.ImagePath = imagePath

	textPath, err := s.SaveFile(base+TextExt, RenderText(rec))
	if err != nil {
		return fail(result, err)
	}
	result.TextPath = textPath

	result.Status = models.StatusSuccess
	return result, nil
}

func fail(result *models.ExportResult, err error) (*models.ExportResult, error) {
	result.ErrorType = models.ErrorKind(err)
	result.Reason = err.Error()
	return result, err
}
