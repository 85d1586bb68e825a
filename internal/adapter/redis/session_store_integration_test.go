package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*SessionStore, *clockwork.FakeClock) {
	t.Helper()
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	return NewSessionStore(client, clock, time.Hour, metrics.NewRedisMetrics(metrics.NewRegistry())), clock
}

func TestSessionStore_CreateOrGet(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	sess, err := store.CreateOrGet(ctx, "workflow-1")
	require.NoError(t, err)
	assert.Equal(t, "workflow-1", sess.ID)
	assert.Empty(t, sess.Fonts)

	_, err = store.CreateOrGet(ctx, "workflow-1")
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSessionStore_AppendFont(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	id, err := store.AppendFont(ctx, "", domain.FontRecord{FamilyName: "Inter", CharacterSet: []string{"a", "b"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = store.AppendFont(ctx, id, domain.FontRecord{FamilyName: "Roboto"})
	require.NoError(t, err)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Fonts, 2)
	assert.Equal(t, "Inter", sess.Fonts[0].FamilyName)
	assert.Equal(t, []string{"a", "b"}, sess.Fonts[0].CharacterSet)
	assert.Equal(t, "Roboto", sess.Fonts[1].FamilyName)
	assert.Equal(t, id, sess.Fonts[1].SessionID)
}

func TestSessionStore_AppendFontUnknownSession(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.AppendFont(context.Background(), "missing", domain.FontRecord{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStore_SubsetAndArtifactsReplace(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	_, err := store.CreateOrGet(ctx, "s")
	require.NoError(t, err)

	require.NoError(t, store.SetSubset(ctx, "s", domain.SubsetRecord{CharacterCount: 3}))
	require.NoError(t, store.SetSubset(ctx, "s", domain.SubsetRecord{CharacterCount: 7}))
	require.NoError(t, store.SetArtifacts(ctx, "s", []domain.ExportedArtifact{{Filename: "a.ttf"}, {Filename: "a.woff"}}))
	require.NoError(t, store.SetArtifacts(ctx, "s", []domain.ExportedArtifact{{Filename: "b.woff2", Format: domain.FormatWOFF2}}))

	sess, err := store.Get(ctx, "s")
	require.NoError(t, err)
	require.NotNil(t, sess.Subset)
	assert.Equal(t, 7, sess.Subset.CharacterCount)
	assert.Equal(t, []domain.ExportedArtifact{{Filename: "b.woff2", Format: domain.FormatWOFF2}}, sess.Artifacts)
}

func TestSessionStore_RemoveIsIdempotent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	_, err := store.CreateOrGet(ctx, "s")
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "s"))
	require.NoError(t, store.Remove(ctx, "s"))

	_, err = store.Get(ctx, "s")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionStore_ListIdle(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	_, err := store.CreateOrGet(ctx, "old")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = store.CreateOrGet(ctx, "fresh")
	require.NoError(t, err)
	clock.Advance(40 * time.Minute)

	idle, err := store.ListIdle(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, idle)

	_, err = store.Get(ctx, "old")
	require.NoError(t, err)
	idle, err = store.ListIdle(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, idle)
}

func TestSessionStore_ConcurrentAppends(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	_, err := store.CreateOrGet(ctx, "s")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AppendFont(ctx, "s", domain.FontRecord{FamilyName: fmt.Sprintf("f%d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, sess.Fonts, 10)
}

func TestSessionStore_Ping(t *testing.T) {
	store, _ := setupStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
