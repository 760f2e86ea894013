package constants

import "strings"

// Content types handled by the service.
const (
	MIMEPDF  = "application/pdf"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEJPEG = "image/jpeg"
)

// AllowedExtensions holds the extensions accepted for quote documents.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// SchemaExtensions holds the extensions accepted for field templates.
var SchemaExtensions = map[string]struct{}{
	"xlsx": {},
	"xlsm": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext names a quote document.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsSchemaExt reports whether ext names a spreadsheet template.
func IsSchemaExt(ext string) bool {
	_, ok := SchemaExtensions[NormalizeExt(ext)]
	return ok
}
