package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSetGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ok, err := store.Set(ctx, 0, "foo", []byte("bar"), storage.SetOpts{})
	require.NoError(t, err)
	require.True(t, ok)

	value, err := store.Get(ctx, 0, "foo")
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), value)
}

func TestSetNXFailsWhenKeyExists(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "foo", []byte("1"), storage.SetOpts{})
	require.NoError(t, err)

	ok, err := store.Set(ctx, 0, "foo", []byte("2"), storage.SetOpts{OnlyIfAbsent: true})
	require.NoError(t, err)
	require.False(t, ok)

	value, err := store.Get(ctx, 0, "foo")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)
}

func TestGetOnWrongTypeReturnsWrongType(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.HSet(ctx, 0, "h", map[string][]byte{"f": []byte("v")})
	require.NoError(t, err)

	_, err = store.Get(ctx, 0, "h")
	require.ErrorIs(t, err, storage.ErrWrongType)
}

func TestIncrByOnNonIntegerFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "n", []byte("not-a-number"), storage.SetOpts{})
	require.NoError(t, err)

	_, err = store.IncrBy(ctx, 0, "n", 1)
	require.ErrorIs(t, err, storage.ErrNotInteger)
}

func TestExpireAndTTLAndPersist(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "foo", []byte("bar"), storage.SetOpts{})
	require.NoError(t, err)

	ok, err := store.Expire(ctx, 0, "foo", time.Now().Add(time.Minute).UnixMilli())
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := store.TTL(ctx, 0, "foo")
	require.NoError(t, err)
	require.Greater(t, ttl, int64(0))

	ok, err = store.Persist(ctx, 0, "foo")
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err = store.TTL(ctx, 0, "foo")
	require.NoError(t, err)
	require.Equal(t, int64(-1), ttl)
}

func TestExpiredKeyIsInvisibleToReads(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "foo", []byte("bar"), storage.SetOpts{
		ExpireAtMillis: time.Now().Add(-time.Second).UnixMilli(),
	})
	require.NoError(t, err)

	exists, err := store.Exists(ctx, 0, "foo")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDelRemovesKeysAndReportsCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "a", []byte("1"), storage.SetOpts{})
	require.NoError(t, err)
	_, err = store.Set(ctx, 0, "b", []byte("2"), storage.SetOpts{})
	require.NoError(t, err)

	n, err := store.Del(ctx, 0, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDatabasesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "foo", []byte("bar"), storage.SetOpts{})
	require.NoError(t, err)

	exists, err := store.Exists(ctx, 1, "foo")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPushPopListOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx, 0, "mylist", storage.Right, [][]byte{[]byte("a"), []byte("b")}, false)
	require.NoError(t, err)

	n, err := store.Push(ctx, 0, "mylist", storage.Left, [][]byte{[]byte("z")}, false)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	values, err := store.LRange(ctx, 0, "mylist", 0, -1)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("z"), []byte("a"), []byte("b")}, values)

	popped, err := store.Pop(ctx, 0, "mylist", storage.Left, 1)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("z")}, popped)
}

func TestHashSetGetDelAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.HSet(ctx, 0, "h", map[string][]byte{"f1": []byte("v1"), "f2": []byte("v2")})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	value, err := store.HGet(ctx, 0, "h", "f1")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)

	all, err := store.HGetAll(ctx, 0, "h")
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"f1": []byte("v1"), "f2": []byte("v2")}, all)

	deleted, err := store.HDel(ctx, 0, "h", []string{"f1"})
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
}

func TestSetAddRemoveMembers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.SAdd(ctx, 0, "s", [][]byte{[]byte("a"), []byte("b"), []byte("a")})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	isMember, err := store.SIsMember(ctx, 0, "s", []byte("a"))
	require.NoError(t, err)
	require.True(t, isMember)

	removed, err := store.SRem(ctx, 0, "s", [][]byte{[]byte("a")})
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}

func TestZAddScoreAndRank(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ZAdd(ctx, 0, "z", map[string]float64{"a": 1, "b": 2})
	require.NoError(t, err)

	score, ok, err := store.ZScore(ctx, 0, "z", "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 1.0, score, 0.0001)

	rank, ok, err := store.ZRank(ctx, 0, "z", "b", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, rank)
}

func TestVacuumDeletesExpiredKeysAcrossDatabases(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, 0, "expired-0", []byte("x"), storage.SetOpts{
		ExpireAtMillis: time.Now().Add(-time.Second).UnixMilli(),
	})
	require.NoError(t, err)

	_, err = store.Set(ctx, 1, "expired-1", []byte("x"), storage.SetOpts{
		ExpireAtMillis: time.Now().Add(-time.Second).UnixMilli(),
	})
	require.NoError(t, err)

	n, err := store.Vacuum(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 2)
}
