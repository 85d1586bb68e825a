package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// FontFormat is the container format of an uploaded or exported font.
type FontFormat string

const (
	FormatTTF   FontFormat = "ttf"
	FormatOTF   FontFormat = "otf"
	FormatWOFF  FontFormat = "woff"
	FormatWOFF2 FontFormat = "woff2"
)

// ParseFontFormat normalizes a format tag or file extension ("WOFF2", ".ttf").
// The second return value is false for anything that is not a known font format.
func ParseFontFormat(s string) (FontFormat, bool) {
	f := FontFormat(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatTTF, FormatOTF, FormatWOFF, FormatWOFF2:
		return f, true
	default:
		return "", false
	}
}

// FormatFromFilename returns the font format implied by the file extension.
func FormatFromFilename(name string) (FontFormat, bool) {
	return ParseFontFormat(filepath.Ext(name))
}

// ExportFormats are the formats the backend can export a subset to.
var ExportFormats = []FontFormat{FormatTTF, FormatWOFF, FormatWOFF2}

// IsExportFormat reports whether f can be requested from an export.
func IsExportFormat(f FontFormat) bool {
	for _, ef := range ExportFormats {
		if ef == f {
			return true
		}
	}
	return false
}

// FontFile is one font resource handed to the upload pipeline.
type FontFile struct {
	Filename string
	Data     []byte
}

// FontRecord is the metadata the backend extracted from one uploaded font.
// Records are immutable; uploading the same font again appends a new record.
type FontRecord struct {
	SessionID    string     `json:"session_id"`
	Filename     string     `json:"filename,omitempty"`
	FamilyName   string     `json:"family_name"`
	StyleName    string     `json:"style_name"`
	FullName     string     `json:"full_name"`
	Version      string     `json:"version,omitempty"`
	Designer     string     `json:"designer,omitempty"`
	Description  string     `json:"description,omitempty"`
	GlyphCount   int        `json:"glyph_count"`
	CharacterSet []string   `json:"character_set"`
	FileSize     int64      `json:"file_size"`
	Format       FontFormat `json:"format"`
}

// SubsetRecord describes the current subset of a session.
type SubsetRecord struct {
	SessionID      string    `json:"session_id"`
	CharacterCount int       `json:"character_count"`
	FontCount      int       `json:"subset_count"`
	Reference      string    `json:"subset_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExportedArtifact is one exported output file. Filename is unique within a session.
type ExportedArtifact struct {
	Filename string     `json:"filename"`
	Format   FontFormat `json:"format"`
	Size     int64      `json:"size"`
	Path     string     `json:"path"`
}
