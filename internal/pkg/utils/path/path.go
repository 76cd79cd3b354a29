package path

import (
	"path/filepath"
	"regexp"
	"strings"
)

const maxFileNameRunes = 120

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// SanitizeFileName reduces an uploaded file name to a single safe path segment.
// Directory parts are dropped, unsafe characters collapse to "-", leading dots are removed.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.ReplaceAll(name, "\x00", ""))
	if name == "." || name == "/" {
		name = ""
	}

	clean := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	clean = strings.Trim(clean, "-")
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "file"
	}

	if r := []rune(clean); len(r) > maxFileNameRunes {
		ext := filepath.Ext(clean)
		if len([]rune(ext)) >= maxFileNameRunes {
			ext = ""
		}
		stem := []rune(strings.TrimSuffix(clean, ext))
		clean = string(stem[:maxFileNameRunes-len([]rune(ext))]) + ext
	}
	return clean
}
