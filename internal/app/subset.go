package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/fontsubset/internal/charset"
	"github.com/pscheid92/fontsubset/internal/domain"
)

// DefaultNameSuffix is appended to the family name of subset fonts when the
// caller gives neither a suffix nor a custom name.
const DefaultNameSuffix = "Subset"

type SubsetParams struct {
	SessionID      string
	Characters     string
	NameSuffix     string
	CustomFontName string
}

// Resolve expands a selection against the character set of the session's
// first font.
func (s *Service) Resolve(ctx context.Context, sessionID string, sel charset.Selection) (string, error) {
	chars, err := s.resolve(ctx, sessionID, sel)
	s.observe(opResolve, err)
	return chars, err
}

func (s *Service) resolve(ctx context.Context, sessionID string, sel charset.Selection) (string, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(sess.Fonts) == 0 {
		return "", domain.ErrNoFonts
	}
	return charset.Resolve(sel, charset.Domain(sess.Fonts)), nil
}

// Subset asks the backend to subset every font of the session to the given
// characters and makes the result the session's current subset. Every
// character must be present in at least one of the session's fonts.
func (s *Service) Subset(ctx context.Context, p SubsetParams) (*domain.SubsetRecord, error) {
	rec, err := s.subset(ctx, p)
	s.observe(opSubset, err)
	return rec, err
}

func (s *Service) subset(ctx context.Context, p SubsetParams) (*domain.SubsetRecord, error) {
	sess, err := s.store.Get(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Fonts) == 0 {
		return nil, domain.ErrNoFonts
	}

	chars := charset.Dedupe(p.Characters)
	if chars == "" {
		return nil, domain.ErrEmptySelection
	}
	if missing := charset.Missing(chars, charset.Union(sess.Fonts)); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrCharacterUnavailable, string(missing))
	}

	suffix := strings.TrimSpace(p.NameSuffix)
	if suffix == "" {
		suffix = DefaultNameSuffix
	}

	res, err := s.backend.Subset(ctx, domain.SubsetRequest{
		SessionID:      sess.ID,
		Characters:     chars,
		NameSuffix:     suffix,
		CustomFontName: strings.TrimSpace(p.CustomFontName),
	})
	if err != nil {
		return nil, s.backendFailure(ctx, sess.ID, err)
	}

	rec := domain.SubsetRecord{
		SessionID:      sess.ID,
		CharacterCount: res.CharacterCount,
		FontCount:      res.FontCount,
		Reference:      res.Reference,
		CreatedAt:      s.clock.Now(),
	}
	if rec.CharacterCount == 0 {
		rec.CharacterCount = utf8.RuneCountInString(chars)
	}
	if err := s.store.SetSubset(ctx, sess.ID, rec); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Subset generated",
		"session_id", sess.ID,
		"characters", rec.CharacterCount,
		"fonts", rec.FontCount,
	)
	return &rec, nil
}

// backendFailure turns a backend "not found" into a local session expiry. The
// backend has already dropped the session, so the local copy is dropped too.
func (s *Service) backendFailure(ctx context.Context, sessionID string, err error) error {
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	slog.WarnContext(ctx, "Backend no longer knows session, dropping it", "session_id", sessionID, "error", err)
	if rmErr := s.store.Remove(ctx, sessionID); rmErr != nil {
		slog.ErrorContext(ctx, "Failed to drop expired session", "session_id", sessionID, "error", rmErr)
	}
	return fmt.Errorf("%w: %w", domain.ErrSessionNotFound, err)
}
