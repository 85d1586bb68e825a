package session

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontsubset/internal/domain"
)

type entry struct {
	mu      sync.Mutex // serializes writers of this session
	removed bool
	snap    atomic.Pointer[domain.Session]
}

// InMemoryStore is a process-local domain.SessionStore.
type InMemoryStore struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[string]*entry
}

var _ domain.SessionStore = (*InMemoryStore)(nil)

func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	return &InMemoryStore{
		clock:    clock,
		sessions: make(map[string]*entry),
	}
}

func (s *InMemoryStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

func (s *InMemoryStore) create(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e
	}
	now := s.clock.Now()
	e := &entry{}
	e.snap.Store(&domain.Session{ID: id, CreatedAt: now, LastAccessed: now})
	s.sessions[id] = e
	return e
}

// update applies fn to a private copy of the session and publishes the result.
func (s *InMemoryStore) update(id string, fn func(*domain.Session)) (*domain.Session, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, domain.ErrSessionNotFound
	}

	next := e.snap.Load().Clone()
	fn(next)
	next.LastAccessed = s.clock.Now()
	e.snap.Store(next)
	return next, nil
}

func (s *InMemoryStore) CreateOrGet(_ context.Context, id string) (*domain.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	for {
		s.create(id)
		snap, err := s.update(id, func(*domain.Session) {})
		if err == nil {
			return snap.Clone(), nil
		}
		// lost a race against Remove, create again
	}
}

func (s *InMemoryStore) AppendFont(_ context.Context, id string, rec domain.FontRecord) (string, error) {
	if id == "" {
		id = uuid.NewString()
		s.create(id)
	}
	rec.SessionID = id
	rec.CharacterSet = append([]string(nil), rec.CharacterSet...)
	_, err := s.update(id, func(sess *domain.Session) {
		sess.Fonts = append(sess.Fonts, rec)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *InMemoryStore) SetSubset(_ context.Context, id string, rec domain.SubsetRecord) error {
	rec.SessionID = id
	_, err := s.update(id, func(sess *domain.Session) {
		sess.Subset = &rec
	})
	return err
}

func (s *InMemoryStore) SetArtifacts(_ context.Context, id string, artifacts []domain.ExportedArtifact) error {
	list := append([]domain.ExportedArtifact(nil), artifacts...)
	_, err := s.update(id, func(sess *domain.Session) {
		sess.Artifacts = list
	})
	return err
}

// Get returns the current snapshot and refreshes the session's idle timer.
func (s *InMemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	snap, err := s.update(id, func(*domain.Session) {})
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

func (s *InMemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
	return nil
}

func (s *InMemoryStore) ListIdle(_ context.Context, maxIdle time.Duration) ([]string, error) {
	cutoff := s.clock.Now().Add(-maxIdle)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var idle []string
	for id, e := range s.sessions {
		if e.snap.Load().LastAccessed.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	sort.Strings(idle)
	return idle, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
