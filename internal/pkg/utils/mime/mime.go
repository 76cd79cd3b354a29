package mime

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// allowedMimeExt maps accepted upload MIME types to the extension stored as file_type.
var allowedMimeExt = map[string]string{
	"image/jpeg":         "jpg",
	"image/jpg":          "jpg",
	"image/png":          "png",
	"image/gif":          "gif",
	"image/webp":         "webp",
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.ms-excel":                                                  "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"application/vnd.ms-powerpoint":                                             "ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"text/plain":                   "txt",
	"text/csv":                     "csv",
	"application/zip":              "zip",
	"application/x-rar-compressed": "rar",
	"application/x-7z-compressed":  "7z",
}

// executableExts are rejected whatever their content looks like.
var executableExts = map[string]struct{}{
	"php": {}, "phtml": {}, "php3": {}, "php4": {}, "php5": {}, "php6": {}, "php7": {}, "phps": {}, "phar": {},
}

// extMimeMap refines "text/plain" detections for text formats content sniffing cannot tell apart.
var extMimeMap = map[string]string{
	".csv": "text/csv",
}

// DetectMimeType detects the MIME type from file content, without parameters.
// Plain text is refined by extension.
func DetectMimeType(content []byte, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType := baseType(mimetype.Detect(content).String())
	if contentType == "text/plain" {
		if refined, ok := extMimeMap[ext]; ok {
			return refined
		}
	}
	return contentType
}

// AllowedType returns the file_type extension of an accepted MIME type. Detected types that are
// more specific than an accepted one (for example a zip based format) fall back to their parents.
func AllowedType(content []byte, filename string) (mimeType, ext string, ok bool) {
	mimeType = DetectMimeType(content, filename)
	if ext, ok = allowedMimeExt[mimeType]; ok {
		return mimeType, ext, true
	}
	for m := mimetype.Detect(content).Parent(); m != nil; m = m.Parent() {
		base := baseType(m.String())
		if ext, ok = allowedMimeExt[base]; ok && base != "text/plain" {
			return base, ext, true
		}
	}
	return mimeType, "", false
}

// AllowedExtensions lists the accepted extensions for error messages.
func AllowedExtensions() []string {
	seen := make(map[string]struct{}, len(allowedMimeExt))
	out := make([]string, 0, len(allowedMimeExt))
	for _, ext := range allowedMimeExt {
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsExecutableName reports whether filename carries a server-executable extension.
func IsExecutableName(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	_, bad := executableExts[ext]
	return bad
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
