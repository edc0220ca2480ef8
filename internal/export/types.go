// Package export renders the active path of a conversation into
// downloadable formats.
package export

import "errors"

// Format represents the export output format.
type Format string

const (
	FormatText    Format = "text"
	FormatJSONL   Format = "jsonl"
	FormatHTML    Format = "html"
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatArchive Format = "archive"
)

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatJSONL, FormatHTML, FormatPDF, FormatDOCX, FormatArchive:
		return true
	}
	return false
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrUnsupportedFormat indicates a format outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
