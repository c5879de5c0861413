package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptap-tz/taptap-bot/internal/storage"
)

type failingPruner struct{}

func (failingPruner) Prune(context.Context, time.Time) (int, error) {
	return 0, errors.New("db gone")
}

func TestSweepDropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	stale, _, err := store.GetOrCreate(ctx, "whatsapp:+255700000001")
	require.NoError(t, err)
	fresh, _, err := store.GetOrCreate(ctx, "whatsapp:+255700000002")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, stale))
	require.NoError(t, store.Save(ctx, fresh))

	sweeper := NewSessionSweeper(store, time.Hour, 0)
	sweeper.now = func() time.Time { return fresh.LastActive.Add(30 * time.Minute) }
	stale.LastActive = fresh.LastActive.Add(-2 * time.Hour)

	pruned, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, created, err := store.GetOrCreate(ctx, "whatsapp:+255700000001")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSweepReportsStoreErrors(t *testing.T) {
	_, err := NewSessionSweeper(failingPruner{}, time.Hour, time.Minute).Sweep(context.Background())
	assert.Error(t, err)
}

func TestDefaultInterval(t *testing.T) {
	assert.Equal(t, time.Minute, NewSessionSweeper(failingPruner{}, 5*time.Minute, 0).interval)
	assert.Equal(t, 6*time.Minute, NewSessionSweeper(failingPruner{}, time.Hour, 0).interval)
}

func TestStartStop(t *testing.T) {
	sweeper := NewSessionSweeper(storage.NewMemoryStore(), time.Hour, 10*time.Millisecond)
	sweeper.Start()
	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop()
	assert.False(t, sweeper.isRunning)
}
