package exporter

import (
	"strings"
	"unicode"
)

const (
	fallbackBaseName = "model"
	maxBaseNameRunes = 120
)

// reservedNames cannot be used as file names on Windows, with or without an extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// BaseName turns a model name into a file base name that is safe on every
// platform. Disallowed characters become '_'; an empty result becomes "model".
func BaseName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	base := strings.Trim(b.String(), ". ")
	if runes := []rune(base); len(runes) > maxBaseNameRunes {
		base = strings.TrimRight(string(runes[:maxBaseNameRunes]), ". ")
	}
	if strings.Trim(base, "_") == "" {
		return fallbackBaseName
	}
	if _, reserved := reservedNames[strings.ToUpper(base)]; reserved {
		base += "_"
	}
	return base
}
