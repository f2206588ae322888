package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour), mr
}

func sampleRecord() Record {
	return Record{
		DraftID:     "draft-001",
		ShopperID:   "shopper-001",
		IntentRef:   "pi_123",
		Amount:      41000,
		Currency:    "EUR",
		PersistedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_PutAndTake(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleRecord()))

	rec, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "draft-001", rec.DraftID)
	assert.Equal(t, int64(41000), rec.Amount)
}

// A second Take for the same intent must come back empty. This is what keeps
// a replayed return URL from committing the order twice.
func TestStore_TakeIsReadOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleRecord()))

	first, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestStore_TakeUnknownRef(t *testing.T) {
	store, _ := newTestStore(t)

	rec, err := store.Take(context.Background(), "pi_missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_RecordExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleRecord()))
	mr.FastForward(2 * time.Hour)

	rec, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_RestoreAfterFailedCommit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleRecord()))

	rec, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NoError(t, store.Restore(ctx, *rec))

	again, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, rec.DraftID, again.DraftID)
}

func TestStore_Clear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleRecord()))
	require.NoError(t, store.Clear(ctx, "pi_123"))

	rec, err := store.Take(ctx, "pi_123")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
