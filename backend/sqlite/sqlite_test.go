package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycache/polycache/backend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestSetGetPersisted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")

	s, err := New(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Close(ctx))

	// entries survive a reopen
	s2, err := New(Config{Path: path})
	require.NoError(t, err)
	defer s2.Close(ctx)

	v, ok, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestExpiredRowIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// the expired slot is free for Add again
	ok, err = s.Add(ctx, "k", []byte("v2"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddExclusive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Add(ctx, "k", []byte("v1"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Add(ctx, "k", []byte("v2"), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Increment(ctx, "c", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = s.Increment(ctx, "c", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, s.Set(ctx, "s", []byte("text"), 0))
	_, err = s.Increment(ctx, "s", 1)
	assert.ErrorIs(t, err, backend.ErrNotNumeric)
}

func TestExpireUpdatesDeadline(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	ok, err := s.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, found, _ := s.Get(ctx, "k")
	assert.True(t, found)

	ok, err = s.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Set(ctx, "app:a", []byte("1"), 0)
	s.Set(ctx, "app:b", []byte("2"), 0)
	s.Set(ctx, "other:c", []byte("3"), 0)

	require.NoError(t, s.Clear(ctx, "app:"))
	_, ok, _ := s.Get(ctx, "app:a")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "other:c")
	assert.True(t, ok)
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Set(ctx, "k", []byte("token"), 0)

	ok, err := s.CompareAndDelete(ctx, "k", []byte("other"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndDelete(ctx, "k", []byte("token"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMultiSetAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.MultiSet(ctx, []backend.Item{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}, 0))

	out, err := s.MultiGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), out[0])
	assert.Equal(t, []byte("2"), out[1])
	assert.Nil(t, out[2])
}

func TestJanitorSweeps(t *testing.T) {
	ctx := context.Background()
	s, err := New(Config{
		Path:            filepath.Join(t.TempDir(), "cache.db"),
		JanitorInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 5*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	// swept row is gone from the table itself, not just filtered on read
	n, err := s.Raw(ctx, "query_row_int", `SELECT COUNT(*) FROM cache`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
