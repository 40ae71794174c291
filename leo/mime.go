package leo

import (
	"path/filepath"
	"strings"
)

// MimeBinary is the fallback for extensions outside the lookup table.
const MimeBinary = "application/octet-stream"

// MIME types for the supported file extensions.
const (
	MimePart     = "application/x-sldprt"
	MimeAssembly = "application/x-sldasm"
	MimeStep     = "model/step"
	MimeText     = "text/plain"
	MimePDF      = "application/pdf"
	MimeDoc      = "application/msword"
	MimeDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var mimeByExt = map[string]string{
	".sldprt": MimePart,
	".sldasm": MimeAssembly,
	".step":   MimeStep,
	".stp":    MimeStep,
	".txt":    MimeText,
	".pdf":    MimePDF,
	".doc":    MimeDoc,
	".docx":   MimeDocx,
}

// MimeType derives a file's MIME type from its extension. Unknown
// extensions map to the generic binary type.
func MimeType(path string) string {
	if m, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return MimeBinary
}

// Processable reports whether the file type is synchronized at all.
// Everything outside the allow-list is skipped silently, not an error.
func Processable(path string) bool {
	_, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// HasDependencies reports whether the file is a container type whose
// references must be resolved before upload. Only assemblies qualify.
func HasDependencies(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".sldasm"
}

// Category groups MIME types for upload batching and progress logging.
// The grouping is cosmetic; correctness comes from dependency-depth
// ordering within a batch.
func Category(mimeType string) string {
	switch mimeType {
	case MimePart, MimeStep:
		return "cad"
	case MimeAssembly:
		return "assembly"
	case MimeText, MimePDF, MimeDoc, MimeDocx:
		return "document"
	default:
		return "other"
	}
}
