package domain

import (
	"context"
	"time"
)

// Session groups the fonts uploaded under one identifier together with their
// current subset and exported artifacts.
//
// A Session value is a snapshot. Stores never mutate a snapshot they handed out;
// every change produces a new value that replaces the old one atomically.
type Session struct {
	ID           string             `json:"id"`
	Fonts        []FontRecord       `json:"fonts"`
	Subset       *SubsetRecord      `json:"subset,omitempty"`
	Artifacts    []ExportedArtifact `json:"artifacts"`
	CreatedAt    time.Time          `json:"created_at"`
	LastAccessed time.Time          `json:"last_accessed"`
}

// Artifact looks up an exported artifact by filename.
func (s *Session) Artifact(filename string) (ExportedArtifact, bool) {
	for _, a := range s.Artifacts {
		if a.Filename == filename {
			return a, true
		}
	}
	return ExportedArtifact{}, false
}

// Clone returns a copy that shares no slices or pointers with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Fonts = append([]FontRecord(nil), s.Fonts...)
	c.Artifacts = append([]ExportedArtifact(nil), s.Artifacts...)
	if s.Subset != nil {
		sub := *s.Subset
		c.Subset = &sub
	}
	return &c
}

// SessionStore is the registry of live sessions.
//
// All mutations are scoped to one session and serialized per session id.
// SetSubset and SetArtifacts replace the previous value as a whole.
type SessionStore interface {
	// CreateOrGet returns the session with the given id, creating an empty one
	// under that exact id if none exists.
	CreateOrGet(ctx context.Context, id string) (*Session, error)
	// AppendFont adds a record to the session's font list. An empty id mints a
	// new session. Returns the id the record was stored under.
	AppendFont(ctx context.Context, id string, rec FontRecord) (string, error)
	SetSubset(ctx context.Context, id string, rec SubsetRecord) error
	SetArtifacts(ctx context.Context, id string, artifacts []ExportedArtifact) error
	// Get returns ErrSessionNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Session, error)
	// Remove is idempotent.
	Remove(ctx context.Context, id string) error

	// ListIdle returns ids of sessions not accessed within maxIdle.
	ListIdle(ctx context.Context, maxIdle time.Duration) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// SweepLock elects the one instance that runs the idle-session sweep when
// several instances share a store.
type SweepLock interface {
	// TryAcquire takes or renews the lock. It reports false while another
	// instance holds it.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance holds it.
	Release(ctx context.Context) error
}
