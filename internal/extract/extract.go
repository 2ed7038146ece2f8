package extract

import (
	"path/filepath"
	"strings"
)

// Extracted is the output of every extractor: a display title plus the raw
// text to be normalized and chunked.
type Extracted struct {
	Title   string
	Content string
}

var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// SupportedFileType reports whether a filename has an extractable extension.
func SupportedFileType(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsPDF reports whether a filename should go through the PDF extractor.
func IsPDF(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}
