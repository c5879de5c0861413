package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// runStoreContract checks the behaviour every SessionStore must share
func runStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()

	t.Run("creates fresh session", func(t *testing.T) {
		s, created, err := store.GetOrCreate(ctx, "whatsapp:+255700000001")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.StateStart, s.State)
		assert.Empty(t, s.Cart)
	})

	t.Run("returns saved session", func(t *testing.T) {
		s, _, err := store.GetOrCreate(ctx, "whatsapp:+255700000002")
		require.NoError(t, err)
		s.State = models.StateCart
		s.RestaurantID = "9"
		s.AddToCart(models.MenuItem{ID: "1", Name: "Chips", Price: 3000}, 2)
		require.NoError(t, store.Save(ctx, s))

		again, created, err := store.GetOrCreate(ctx, "whatsapp:+255700000002")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, s.ID, again.ID)
		assert.Equal(t, models.StateCart, again.State)
		assert.Equal(t, "9", again.RestaurantID)
		require.Len(t, again.Cart, 1)
		assert.Equal(t, 2, again.Cart[0].Quantity)
	})

	t.Run("creation is atomic", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		creations := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, created, err := store.GetOrCreate(ctx, "whatsapp:+255700000003")
				assert.NoError(t, err)
				if created {
					mu.Lock()
					creations++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, creations)
	})

	t.Run("counts sessions", func(t *testing.T) {
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreSaveUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.Save(context.Background(), models.NewSession("never-created"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func newMiniredisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, opts...)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newMiniredisStore(t)
	runStoreContract(t, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newMiniredisStore(t, WithTTL(time.Hour), WithPrefix("test:"))
	ctx := context.Background()

	s, _, err := store.GetOrCreate(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:c1"))
	assert.Equal(t, time.Hour, mr.TTL("test:c1"))

	s.State = models.StateHome
	require.NoError(t, store.Save(ctx, s))

	mr.FastForward(2 * time.Hour)
	fresh, created, err := store.GetOrCreate(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.StateStart, fresh.State)
}
