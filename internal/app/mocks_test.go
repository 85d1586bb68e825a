package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/pscheid92/fontsubset/internal/session"
)

// --- Mock implementations ---

type mockBackend struct {
	extractMetadataFn func(ctx context.Context, file domain.FontFile, sessionID string) (*domain.FontRecord, error)
	subsetFn          func(ctx context.Context, req domain.SubsetRequest) (*domain.SubsetResult, error)
	exportFn          func(ctx context.Context, req domain.ExportRequest) ([]domain.ExportedArtifact, error)
	downloadFn        func(ctx context.Context, sessionID, filename string) (*domain.Download, error)
	downloadAllFn     func(ctx context.Context, sessionID string) (*domain.Download, error)
	deleteSessionFn   func(ctx context.Context, sessionID string) error
}

func (m *mockBackend) ExtractMetadata(ctx context.Context, file domain.FontFile, sessionID string) (*domain.FontRecord, error) {
	if m.extractMetadataFn != nil {
		return m.extractMetadataFn(ctx, file, sessionID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockBackend) Subset(ctx context.Context, req domain.SubsetRequest) (*domain.SubsetResult, error) {
	if m.subsetFn != nil {
		return m.subsetFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockBackend) Export(ctx context.Context, req domain.ExportRequest) ([]domain.ExportedArtifact, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockBackend) Download(ctx context.Context, sessionID, filename string) (*domain.Download, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, sessionID, filename)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockBackend) DownloadAll(ctx context.Context, sessionID string) (*domain.Download, error) {
	if m.downloadAllFn != nil {
		return m.downloadAllFn(ctx, sessionID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockBackend) DeleteSession(ctx context.Context, sessionID string) error {
	if m.deleteSessionFn != nil {
		return m.deleteSessionFn(ctx, sessionID)
	}
	return nil
}

func (m *mockBackend) Ping(context.Context) error { return nil }

// --- Helpers ---

type testEnv struct {
	svc     *Service
	store   *session.InMemoryStore
	backend *mockBackend
	clock   *clockwork.FakeClock
	metrics *metrics.PipelineMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := session.NewInMemoryStore(clock)
	backend := &mockBackend{}
	m := metrics.NewPipelineMetrics(metrics.NewRegistry())
	svc := NewService(store, backend, clock, WithMetrics(m))
	t.Cleanup(svc.Stop)
	return &testEnv{svc: svc, store: store, backend: backend, clock: clock, metrics: m}
}

func charList(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// echoMetadata behaves like the backend: it keeps a given session id and
// issues one otherwise.
func echoMetadata(issued string, charset string) func(context.Context, domain.FontFile, string) (*domain.FontRecord, error) {
	return func(_ context.Context, file domain.FontFile, sessionID string) (*domain.FontRecord, error) {
		if sessionID == "" {
			sessionID = issued
		}
		family := strings.TrimSuffix(file.Filename, ".ttf")
		return &domain.FontRecord{
			SessionID:    sessionID,
			FamilyName:   family,
			CharacterSet: charList(charset),
			GlyphCount:   len(charset),
			FileSize:     int64(len(file.Data)),
			Format:       domain.FormatTTF,
		}, nil
	}
}

func ttf(name string) domain.FontFile {
	return domain.FontFile{Filename: name + ".ttf", Data: []byte("font:" + name)}
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

// seed creates a session holding one font with the given character set.
func (e *testEnv) seed(t *testing.T, id, chars string) {
	t.Helper()
	_, err := e.store.CreateOrGet(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.AppendFont(context.Background(), id, domain.FontRecord{FamilyName: "Open Sans", CharacterSet: charList(chars)}); err != nil {
		t.Fatal(err)
	}
}

type mockSweepLock struct {
	mu       sync.Mutex
	leader   bool
	err      error
	attempts int
	released int
}

func (m *mockSweepLock) TryAcquire(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	return m.leader, m.err
}

func (m *mockSweepLock) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}

func (m *mockSweepLock) counts() (attempts, released int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts, m.released
}
