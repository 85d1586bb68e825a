package domain

import (
	"context"
	"io"
)

// SubsetRequest asks the backend to subset every font of a session.
type SubsetRequest struct {
	SessionID      string
	Characters     string
	NameSuffix     string
	CustomFontName string
}

// SubsetResult is the backend's answer to a SubsetRequest.
type SubsetResult struct {
	Reference      string
	FontCount      int
	CharacterCount int
}

// ExportRequest asks the backend to export the current subset in several formats.
type ExportRequest struct {
	SessionID string
	Formats   []FontFormat
	FontName  string
}

// Download is a byte stream plus the metadata needed to present it as a file.
// The caller must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	Filename      string
	ContentLength int64
}

// FontBackend is the font-processing service that owns the actual glyph work.
type FontBackend interface {
	ExtractMetadata(ctx context.Context, file FontFile, sessionID string) (*FontRecord, error)
	Subset(ctx context.Context, req SubsetRequest) (*SubsetResult, error)
	Export(ctx context.Context, req ExportRequest) ([]ExportedArtifact, error)
	Download(ctx context.Context, sessionID, filename string) (*Download, error)
	DownloadAll(ctx context.Context, sessionID string) (*Download, error)
	// DeleteSession discards all temporary state of a session. Unknown
	// sessions are not an error.
	DeleteSession(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}
