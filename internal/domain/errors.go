package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind roots. Every specific error below wraps exactly one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

var (
	ErrEmptySelection       = fmt.Errorf("%w: character selection is empty", ErrValidation)
	ErrEmptyFormatSet       = fmt.Errorf("%w: no output formats requested", ErrValidation)
	ErrUnsupportedFont      = fmt.Errorf("%w: unsupported font file", ErrValidation)
	ErrUnsupportedFormat    = fmt.Errorf("%w: unsupported output format", ErrValidation)
	ErrUnknownPreset        = fmt.Errorf("%w: unknown character preset", ErrValidation)
	ErrNoFonts              = fmt.Errorf("%w: session has no fonts", ErrValidation)
	ErrCharacterUnavailable = fmt.Errorf("%w: character not present in any font of the session", ErrValidation)
	ErrNoSubsetYet          = fmt.Errorf("%w: no subset has been generated for this session", ErrValidation)

	ErrSessionNotFound  = fmt.Errorf("session %w", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("artifact %w", ErrNotFound)
)

// BackendError is a failure reported by the font-processing backend.
// Reason is the backend's own message and is surfaced verbatim.
type BackendError struct {
	Op         string
	StatusCode int
	Reason     string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s failed (%d): %s", e.Op, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("backend %s failed: %s", e.Op, e.Reason)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets callers test a backend failure against the kind roots: a 404 is a
// not-found, a rejected payload is a validation failure.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest ||
			e.StatusCode == http.StatusUnsupportedMediaType ||
			e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// PartialBatchError reports a multi-file upload that stopped at Filename after
// Succeeded files had been registered.
type PartialBatchError struct {
	Succeeded int
	Filename  string
	Err       error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("upload of %q failed after %d successful uploads: %v", e.Filename, e.Succeeded, e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }
