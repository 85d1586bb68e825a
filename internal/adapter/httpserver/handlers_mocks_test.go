package httpserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontsubset/internal/app"
	"github.com/pscheid92/fontsubset/internal/charset"
	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/pscheid92/fontsubset/internal/platform/config"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	uploadFn      func(ctx context.Context, sessionID string, file domain.FontFile) (*domain.FontRecord, error)
	uploadBatchFn func(ctx context.Context, sessionID string, files []domain.FontFile, scope app.CallScope) ([]domain.FontRecord, error)
	fontsFn       func(ctx context.Context, sessionID string) ([]domain.FontRecord, error)
	resolveFn     func(ctx context.Context, sessionID string, sel charset.Selection) (string, error)
	subsetFn      func(ctx context.Context, p app.SubsetParams) (*domain.SubsetRecord, error)
	exportFn      func(ctx context.Context, p app.ExportParams) ([]domain.ExportedArtifact, error)
	downloadFn    func(ctx context.Context, sessionID, filename string) (*domain.Download, error)
	downloadAllFn func(ctx context.Context, sessionID string) (*domain.Download, error)
	reapFn        func(ctx context.Context, sessionID string) error
	activeFn      func(ctx context.Context) (int, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *mockAppService) Upload(ctx context.Context, sessionID string, file domain.FontFile) (*domain.FontRecord, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, sessionID, file)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) UploadBatch(ctx context.Context, sessionID string, files []domain.FontFile, scope app.CallScope) ([]domain.FontRecord, error) {
	if m.uploadBatchFn != nil {
		return m.uploadBatchFn(ctx, sessionID, files, scope)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Fonts(ctx context.Context, sessionID string) ([]domain.FontRecord, error) {
	if m.fontsFn != nil {
		return m.fontsFn(ctx, sessionID)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockAppService) Resolve(ctx context.Context, sessionID string, sel charset.Selection) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sessionID, sel)
	}
	return "", errNotImplemented
}

func (m *mockAppService) Subset(ctx context.Context, p app.SubsetParams) (*domain.SubsetRecord, error) {
	if m.subsetFn != nil {
		return m.subsetFn(ctx, p)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Export(ctx context.Context, p app.ExportParams) ([]domain.ExportedArtifact, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, p)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Download(ctx context.Context, sessionID, filename string) (*domain.Download, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, sessionID, filename)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) DownloadAll(ctx context.Context, sessionID string) (*domain.Download, error) {
	if m.downloadAllFn != nil {
		return m.downloadAllFn(ctx, sessionID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Reap(ctx context.Context, sessionID string) error {
	if m.reapFn != nil {
		return m.reapFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAppService) ActiveSessions(ctx context.Context) (int, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx)
	}
	return 0, errNotImplemented
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:                  "0",
		BackendURL:            "http://backend.test",
		BackendRequestTimeout: 5 * time.Second,
		MaxUploadSize:         "1M",
		UploadRateLimit:       100,
		UploadRateBurst:       100,
		CORSOrigins:           []string{"http://localhost:5173"},
	}
}

func newTestServer(t *testing.T, app appService, opts ...Option) *Server {
	t.Helper()
	return NewServer(testConfig(), app, clockwork.NewFakeClock(), opts...)
}

func withHealthChecks(checks ...HealthCheck) Option {
	return WithHealthChecks(checks...)
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware(nil)(handler)(c)
}

// serve runs req through the full router, middleware included.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	name string
	data string
}

func multipartRequest(t *testing.T, sessionID string, files ...formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(formFieldFile, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	if sessionID != "" {
		require.NoError(t, mw.WriteField(formFieldSessionID, sessionID))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
