package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pscheid92/fontsubset/internal/domain"
)

// Upload registers one font with a session. With an empty sessionID the
// session is the one the backend assigns (or a freshly minted one). A failed
// upload never changes the session, though an explicitly named session is
// created up front and stays empty.
func (s *Service) Upload(ctx context.Context, sessionID string, file domain.FontFile) (*domain.FontRecord, error) {
	rec, err := s.upload(ctx, sessionID, file)
	s.observe(opUpload, err)
	return rec, err
}

func (s *Service) upload(ctx context.Context, sessionID string, file domain.FontFile) (*domain.FontRecord, error) {
	if err := checkFontFile(file); err != nil {
		return nil, err
	}

	if sessionID != "" {
		if _, err := s.store.CreateOrGet(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	rec, err := s.backend.ExtractMetadata(ctx, file, sessionID)
	if err != nil {
		return nil, metadataFailure(err)
	}

	switch {
	case sessionID != "" && rec.SessionID != "" && rec.SessionID != sessionID:
		return nil, &domain.BackendError{
			Op:     opUpload,
			Reason: fmt.Sprintf("backend stored font under session %q instead of %q", rec.SessionID, sessionID),
		}
	case sessionID == "" && rec.SessionID != "":
		sessionID = rec.SessionID
		if _, err := s.store.CreateOrGet(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	if rec.Filename == "" {
		rec.Filename = file.Filename
	}

	id, err := s.store.AppendFont(ctx, sessionID, *rec)
	if err != nil {
		return nil, err
	}
	rec.SessionID = id

	if s.metrics != nil {
		s.metrics.UploadedBytes.Observe(float64(len(file.Data)))
	}
	slog.InfoContext(ctx, "Font uploaded",
		"session_id", id,
		"filename", file.Filename,
		"family", rec.FamilyName,
		"glyphs", rec.GlyphCount,
	)
	return rec, nil
}

// metadataFailure treats an error status from the backend as a rejection of
// the file; unparseable fonts come back as plain 500s. Failures without a
// status or from a gateway stay backend errors.
func metadataFailure(err error) error {
	var be *domain.BackendError
	if !errors.As(err, &be) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	switch be.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return err
	}
	if be.StatusCode < 400 {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUnsupportedFont, err)
}

// CallScope derives the context for one backend round trip.
type CallScope func(context.Context) (context.Context, context.CancelFunc)

func (f CallScope) derive(ctx context.Context) (context.Context, context.CancelFunc) {
	if f == nil {
		return ctx, func() {}
	}
	return f(ctx)
}

// UploadBatch uploads files one after another into the same session. The
// session of the first successful upload is used for the rest. When a file
// fails after others succeeded, the records registered so far are returned
// together with a *domain.PartialBatchError.
//
// scope, when set, derives the context of each file's upload so every backend
// round trip gets its own deadline.
func (s *Service) UploadBatch(ctx context.Context, sessionID string, files []domain.FontFile, scope CallScope) ([]domain.FontRecord, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no font files provided", domain.ErrValidation)
	}

	records := make([]domain.FontRecord, 0, len(files))
	for _, f := range files {
		callCtx, cancel := scope.derive(ctx)
		rec, err := s.Upload(callCtx, sessionID, f)
		cancel()
		if err != nil {
			if len(records) == 0 {
				return nil, err
			}
			slog.WarnContext(ctx, "Batch upload stopped early",
				"session_id", sessionID,
				"succeeded", len(records),
				"failed_file", f.Filename,
				"error", err,
			)
			return records, &domain.PartialBatchError{Succeeded: len(records), Filename: f.Filename, Err: err}
		}
		sessionID = rec.SessionID
		records = append(records, *rec)
	}
	return records, nil
}

func checkFontFile(file domain.FontFile) error {
	if _, ok := domain.FormatFromFilename(file.Filename); !ok {
		return fmt.Errorf("%w: %q is not a .ttf, .otf, .woff or .woff2 file", domain.ErrUnsupportedFont, file.Filename)
	}
	if len(file.Data) == 0 {
		return fmt.Errorf("%w: %q is empty", domain.ErrUnsupportedFont, file.Filename)
	}
	return nil
}
