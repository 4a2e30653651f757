package constants

import "strings"

// AllowedExtensions holds the file extensions accepted as source batches.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// MaxUploadMBDefault caps a single source PDF.
const MaxUploadMBDefault = 200

// PreviewChars is how much page text is kept for manual triage.
const PreviewChars = 200

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
