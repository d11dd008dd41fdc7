package models

import "errors"

// Error kinds surfaced to the front ends. Stage errors wrap one of these.
var (
	ErrInvalidURL = errors.New("invalid url")
	ErrFetch      = errors.New("fetch failed")
	ErrExtract    = errors.New("not a model page")
	ErrIO         = errors.New("write failed")
)

// ErrorKind maps err to a short machine-readable kind.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrFetch):
		return "fetch_error"
	case errors.Is(err, ErrExtract):
		return "extract_error"
	case errors.Is(err, ErrIO):
		return "io_error"
	default:
		return "unknown"
	}
}
