package common

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/dtnitsch/vincenzo/models"
)

var (
	markdownLinkPattern = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	urlPattern          = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.]*[a-zA-Z0-9](:[0-9]+)?([/?#][^\s]*)?$`)
	modelIDPattern      = regexp.MustCompile(`/models/(\d+)`)
	versionIDPattern    = regexp.MustCompile(`[?&]modelVersionId=(\d+)`)
)

// bracketPairs maps a closing bracket to its opener.
var bracketPairs = map[string]string{")": "(", "]": "[", "}": "{", ">": "<"}

// SanitizeURL performs basic cleanup on URLs to handle common copy-paste issues.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	// [text](url) -> url
	if matches := markdownLinkPattern.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = matches[1]
	}

	for _, char := range []string{"(", "[", "<", "\"", "'"} {
		cleaned = strings.TrimPrefix(cleaned, char)
	}
	for _, char := range []string{",", ".", ")", "}", "]", "\"", "'", ">", ";"} {
		if open, ok := bracketPairs[char]; ok && strings.Count(cleaned, open) >= strings.Count(cleaned, char) {
			// balanced: the bracket is part of the URL, e.g. a slug ending in "_(v2)"
			continue
		}
		cleaned = strings.TrimSuffix(cleaned, char)
	}

	return strings.TrimSpace(cleaned)
}

// ValidateURL sanitizes rawURL and checks it is an absolute http(s) URL.
// Failures wrap models.ErrInvalidURL.
func ValidateURL(rawURL string) (string, error) {
	cleaned := SanitizeURL(rawURL)
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty url", models.ErrInvalidURL)
	}
	// Spaces must be pre-encoded as %20.
	if strings.ContainsAny(cleaned, " \t\n") {
		return "", fmt.Errorf("%w: %q contains whitespace", models.ErrInvalidURL, rawURL)
	}
	if !urlPattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q is not an http(s) url", models.ErrInvalidURL, rawURL)
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", models.ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
		return "", fmt.Errorf("%w: bad host in %q", models.ErrInvalidURL, rawURL)
	}

	return cleaned, nil
}

// ModelIDs pulls the model id and the optional modelVersionId out of a model page URL.
// Missing ids are returned as 0.
func ModelIDs(rawURL string) (modelID, versionID int) {
	if m := modelIDPattern.FindStringSubmatch(rawURL); len(m) > 1 {
		modelID, _ = strconv.Atoi(m[1])
	}
	if m := versionIDPattern.FindStringSubmatch(rawURL); len(m) > 1 {
		versionID, _ = strconv.Atoi(m[1])
	}
	return modelID, versionID
}

// LogLevel maps a config level name to a slog level; quiet forces errors only.
func LogLevel(level string, quiet bool) slog.Level {
	if quiet {
		return slog.LevelError
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the JSON stderr logger shared by every front end.
func NewLogger(level string, quiet bool) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: LogLevel(level, quiet)}))
}

// OpenPath opens a file, directory or URL with the platform's default handler.
func OpenPath(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, target)
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", target)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
