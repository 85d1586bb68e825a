package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pscheid92/fontsubset/internal/domain"
)

type ExportParams struct {
	SessionID string
	Formats   []string
	FontName  string
}

// Export converts the session's current subset into the requested formats
// with a single backend call and replaces the session's artifact list.
func (s *Service) Export(ctx context.Context, p ExportParams) ([]domain.ExportedArtifact, error) {
	artifacts, err := s.export(ctx, p)
	s.observe(opExport, err)
	return artifacts, err
}

func (s *Service) export(ctx context.Context, p ExportParams) ([]domain.ExportedArtifact, error) {
	sess, err := s.store.Get(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Subset == nil {
		return nil, domain.ErrNoSubsetYet
	}

	formats, err := NormalizeFormats(p.Formats)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.backend.Export(ctx, domain.ExportRequest{
		SessionID: sess.ID,
		Formats:   formats,
		FontName:  strings.TrimSpace(p.FontName),
	})
	if err != nil {
		return nil, s.backendFailure(ctx, sess.ID, err)
	}

	if err := s.store.SetArtifacts(ctx, sess.ID, artifacts); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		for _, a := range artifacts {
			s.metrics.ArtifactsExported.WithLabelValues(string(a.Format)).Inc()
		}
	}
	slog.InfoContext(ctx, "Subset exported", "session_id", sess.ID, "formats", formats, "files", len(artifacts))
	return artifacts, nil
}

// NormalizeFormats lower-cases the requested formats, strips a leading dot and
// drops repeats while keeping the first occurrence's position.
func NormalizeFormats(requested []string) ([]domain.FontFormat, error) {
	seen := make(map[domain.FontFormat]struct{}, len(requested))
	formats := make([]domain.FontFormat, 0, len(requested))

	for _, raw := range requested {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		f, ok := domain.ParseFontFormat(raw)
		if !ok || !domain.IsExportFormat(f) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, raw)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		formats = append(formats, f)
	}

	if len(formats) == 0 {
		return nil, domain.ErrEmptyFormatSet
	}
	return formats, nil
}
