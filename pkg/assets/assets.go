// Package assets holds files shipped inside the binary.
package assets

import _ "embed"

//go:embed default.png
var defaultPNG []byte

// DefaultImage returns a copy of the bundled placeholder preview.
func DefaultImage() []byte {
	out := make([]byte, len(defaultPNG))
	copy(out, defaultPNG)
	return out
}
