package sessionstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core/auth"
)

// Runs against a live server: REDIS_TEST_URL=redis://localhost:6379/15
func newTestStore(t *testing.T) *RedisStore {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	rdb, err := Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test:"+uuid.New().String()+":")
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess := auth.Session{ID: auth.NewSessionID(), UserID: 3, Token: "tok", Fingerprint: auth.Fingerprint("ua")}
	require.NoError(t, store.Save(ctx, sess, time.Minute))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, store.Touch(ctx, sess.ID, time.Hour))
	ttl, err := store.rdb.TTL(ctx, store.key(sess.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.Equal(t, auth.ErrSessionNotFound, err)
	assert.Equal(t, auth.ErrSessionNotFound, store.Touch(ctx, sess.ID, time.Hour))
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess := auth.Session{ID: auth.NewSessionID(), UserID: 1, Token: "t"}
	require.NoError(t, store.Save(ctx, sess, 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	_, err := store.Get(ctx, sess.ID)
	assert.Equal(t, auth.ErrSessionNotFound, err)
}
