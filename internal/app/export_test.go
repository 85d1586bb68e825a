package app

import (
	"context"
	"testing"

	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSubset(t *testing.T, env *testEnv, id string) {
	t.Helper()
	env.seed(t, id, "abc")
	require.NoError(t, env.store.SetSubset(context.Background(), id, domain.SubsetRecord{CharacterCount: 3}))
}

func artifactsFor(req domain.ExportRequest) []domain.ExportedArtifact {
	out := make([]domain.ExportedArtifact, 0, len(req.Formats))
	for _, f := range req.Formats {
		out = append(out, domain.ExportedArtifact{Filename: "OpenSans-Subset." + string(f), Format: f, Size: 100})
	}
	return out
}

func TestExport_BeforeSubset(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "s", "abc")

	_, err := env.svc.Export(context.Background(), ExportParams{SessionID: "s", Formats: []string{"woff2"}})
	assert.ErrorIs(t, err, domain.ErrNoSubsetYet)
}

func TestExport_DuplicateFormatsCollapse(t *testing.T) {
	env := newTestEnv(t)
	withSubset(t, env, "s")

	var requests [][]domain.FontFormat
	env.backend.exportFn = func(_ context.Context, req domain.ExportRequest) ([]domain.ExportedArtifact, error) {
		requests = append(requests, req.Formats)
		return artifactsFor(req), nil
	}

	first, err := env.svc.Export(context.Background(), ExportParams{SessionID: "s", Formats: []string{"woff2", "woff2"}})
	require.NoError(t, err)
	second, err := env.svc.Export(context.Background(), ExportParams{SessionID: "s", Formats: []string{"woff2"}})
	require.NoError(t, err)

	assert.Equal(t, requests[0], requests[1])
	assert.Equal(t, first, second)
}

func TestExport_ReplacesArtifactList(t *testing.T) {
	env := newTestEnv(t)
	withSubset(t, env, "s")
	env.backend.exportFn = func(_ context.Context, req domain.ExportRequest) ([]domain.ExportedArtifact, error) {
		return artifactsFor(req), nil
	}

	_, err := env.svc.Export(context.Background(), ExportParams{SessionID: "s", Formats: []string{"ttf", "woff"}})
	require.NoError(t, err)
	_, err = env.svc.Export(context.Background(), ExportParams{SessionID: "s", Formats: []string{".WOFF2"}})
	require.NoError(t, err)

	sess, err := env.store.Get(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, sess.Artifacts, 1)
	assert.Equal(t, domain.FormatWOFF2, sess.Artifacts[0].Format)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ArtifactsExported.WithLabelValues("woff2")))
}

func TestExport_Errors(t *testing.T) {
	env := newTestEnv(t)
	withSubset(t, env, "s")

	_, err := env.svc.Export(context.Background(), ExportParams{SessionID: "nope", Formats: []string{"ttf"}})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = env.svc.Export(context.Background(), ExportParams{SessionID: "s"})
	assert.ErrorIs(t, err, domain.ErrEmptyFormatSet)

	_, err = env.svc.Export(context.Background(), ExportParams{SessionID: "s", Formats: []string{"eot"}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestNormalizeFormats(t *testing.T) {
	got, err := NormalizeFormats([]string{"WOFF2", ".ttf", "woff2", " woff ", ""})
	require.NoError(t, err)
	assert.Equal(t, []domain.FontFormat{domain.FormatWOFF2, domain.FormatTTF, domain.FormatWOFF}, got)

	_, err = NormalizeFormats([]string{"otf"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = NormalizeFormats([]string{"", "  "})
	assert.ErrorIs(t, err, domain.ErrEmptyFormatSet)
}
