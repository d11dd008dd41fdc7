package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/dtnitsch/vincenzo/models"
)

var (
	errEmptyImage      = errors.New("empty image payload")
	errNotImage        = errors.New("content type is not an accepted image type")
	errTooSmall        = errors.New("image payload below minimum size")
	errUndecodableData = errors.New("image payload does not decode")
)

// Validate checks a downloaded payload against the criteria. A missing content
// type is sniffed from the bytes.
func Validate(data []byte, contentType string, criteria models.ImageCriteria) error {
	if len(data) == 0 {
		return errEmptyImage
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !acceptedType(contentType, criteria.ContentTypes) {
		return fmt.Errorf("%w: %s", errNotImage, contentType)
	}

	if len(data) < criteria.MinBytes {
		return fmt.Errorf("%w: %d < %d bytes", errTooSmall, len(data), criteria.MinBytes)
	}

	if criteria.RequireDecodable {
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: %v", errUndecodableData, err)
		}
	}
	return nil
}

func acceptedType(contentType string, prefixes []string) bool {
	if len(prefixes) == 0 {
		prefixes = []string{"image/"}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, p := range prefixes {
		if strings.HasPrefix(contentType, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
