package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pscheid92/fontsubset/internal/domain"
)

const defaultBundleName = "font-subsets.zip"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Download streams one exported artifact. The filename must belong to the
// session's current export. The caller closes the returned body.
func (s *Service) Download(ctx context.Context, sessionID, filename string) (*domain.Download, error) {
	dl, err := s.download(ctx, sessionID, filename)
	s.observe(opDownload, err)
	return dl, err
}

func (s *Service) download(ctx context.Context, sessionID, filename string) (*domain.Download, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := sess.Artifact(filename); !ok {
		return nil, domain.ErrArtifactNotFound
	}

	dl, err := s.backend.Download(ctx, sess.ID, filename)
	if err != nil {
		return nil, artifactFailure(err)
	}
	if dl.Filename == "" {
		dl.Filename = filename
	}
	return dl, nil
}

// DownloadAll streams a bundle of every current artifact of the session.
// The caller closes the returned body.
func (s *Service) DownloadAll(ctx context.Context, sessionID string) (*domain.Download, error) {
	dl, err := s.downloadAll(ctx, sessionID)
	s.observe(opDownloadAll, err)
	return dl, err
}

func (s *Service) downloadAll(ctx context.Context, sessionID string) (*domain.Download, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Artifacts) == 0 {
		return nil, domain.ErrArtifactNotFound
	}

	dl, err := s.backend.DownloadAll(ctx, sess.ID)
	if err != nil {
		return nil, artifactFailure(err)
	}
	if dl.Filename == "" {
		dl.Filename = BundleName(sess)
	}
	return dl, nil
}

// artifactFailure maps a backend "not found" on a download to a missing
// artifact. A missing file does not mean the backend dropped the session, so
// the session is left alone.
func artifactFailure(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrArtifactNotFound, err)
	}
	return err
}

// BundleName names the zip of a session's artifacts after its first font
// family, e.g. "open-sans-subset.zip".
func BundleName(sess *domain.Session) string {
	if len(sess.Fonts) == 0 {
		return defaultBundleName
	}
	clean := unsafeNameChars.ReplaceAllString(sess.Fonts[0].FamilyName, "-")
	clean = strings.ToLower(strings.Trim(clean, "-"))
	if clean == "" {
		return defaultBundleName
	}
	return clean + "-subset.zip"
}
