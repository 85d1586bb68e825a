package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_StreamsArtifact(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("woff2-bytes")}
	srv := newTestServer(t, &mockAppService{
		downloadFn: func(_ context.Context, sessionID, filename string) (*domain.Download, error) {
			assert.Equal(t, "s", sessionID)
			assert.Equal(t, "Brand.woff2", filename)
			return &domain.Download{Body: body, ContentType: "font/woff2", Filename: filename, ContentLength: 11}, nil
		},
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/download/s/Brand.woff2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "woff2-bytes", rec.Body.String())
	assert.Equal(t, "font/woff2", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Brand.woff2", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.True(t, body.closed)
}

func TestDownload_UnknownArtifact(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		downloadFn: func(context.Context, string, string) (*domain.Download, error) {
			return nil, domain.ErrArtifactNotFound
		},
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/download/s/other.ttf", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestDownloadAll_QuotesFilenameWithSpaces(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		downloadAllFn: func(context.Context, string) (*domain.Download, error) {
			return &domain.Download{
				Body:        &closeTracker{Reader: strings.NewReader("PK")},
				ContentType: "application/zip",
				Filename:    "open sans-subset.zip",
			}, nil
		},
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/download-all/s", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="open sans-subset.zip"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "PK", rec.Body.String())
}

func TestDownloadAll_NothingExported(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		downloadAllFn: func(context.Context, string) (*domain.Download, error) {
			return nil, domain.ErrArtifactNotFound
		},
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/download-all/s", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
