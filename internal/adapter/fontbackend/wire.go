package fontbackend

import "github.com/pscheid92/fontsubset/internal/domain"

// JSON shapes of the backend API.

type errorResponse struct {
	Detail string `json:"detail"`
}

type metadataResponse struct {
	SessionID    string   `json:"session_id"`
	FamilyName   string   `json:"family_name"`
	StyleName    string   `json:"style_name"`
	FullName     string   `json:"full_name"`
	Version      string   `json:"version"`
	Designer     string   `json:"designer"`
	Description  string   `json:"description"`
	GlyphCount   int      `json:"glyph_count"`
	CharacterSet []string `json:"character_set"`
	FileSize     int64    `json:"file_size"`
	Format       string   `json:"format"`
}

func (m metadataResponse) toRecord(filename string) *domain.FontRecord {
	format, ok := domain.ParseFontFormat(m.Format)
	if !ok {
		format, _ = domain.FormatFromFilename(filename)
	}
	return &domain.FontRecord{
		SessionID:    m.SessionID,
		Filename:     filename,
		FamilyName:   m.FamilyName,
		StyleName:    m.StyleName,
		FullName:     m.FullName,
		Version:      m.Version,
		Designer:     m.Designer,
		Description:  m.Description,
		GlyphCount:   m.GlyphCount,
		CharacterSet: m.CharacterSet,
		FileSize:     m.FileSize,
		Format:       format,
	}
}

type subsetRequest struct {
	SessionID      string `json:"session_id"`
	Characters     string `json:"characters"`
	FontNameSuffix string `json:"font_name_suffix,omitempty"`
	CustomFontName string `json:"custom_font_name,omitempty"`
}

type subsetResponse struct {
	SubsetPath     string `json:"subset_path"`
	SubsetCount    int    `json:"subset_count"`
	CharacterCount int    `json:"character_count"`
}

type exportRequest struct {
	SessionID string   `json:"session_id"`
	Formats   []string `json:"formats"`
	FontName  string   `json:"font_name,omitempty"`
}

type exportedFile struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
}

type exportResponse struct {
	Files []exportedFile `json:"files"`
}
