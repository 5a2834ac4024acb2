package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyJoinsParts(t *testing.T) {
	t.Parallel()

	require.Equal(t, "project-stats:p1", Key("project-stats", "p1"))
	require.Equal(t, "prompts:p1:match_status=gap", Key("prompts", "p1", "match_status=gap"))
}

func TestGetSetInvalidate(t *testing.T) {
	t.Parallel()

	c, err := New(8, time.Minute)
	require.NoError(t, err)

	_, ok := c.Get("a")
	require.False(t, ok)

	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 42, v)

	c.Invalidate("a")
	_, ok = c.Get("a")
	require.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	c, err := New(8, 20*time.Millisecond)
	require.NoError(t, err)

	c.Set("a", "fresh")
	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("a")
	require.False(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	t.Parallel()

	c, err := New(8, time.Minute)
	require.NoError(t, err)

	c.Set(Key("prompts", "p1", "page=1"), 1)
	c.Set(Key("prompts", "p1", "page=2"), 2)
	c.Set(Key("prompts", "p2", "page=1"), 3)

	removed := c.InvalidatePrefix(Key("prompts", "p1"))
	require.Equal(t, 2, removed)

	_, ok := c.Get(Key("prompts", "p2", "page=1"))
	require.True(t, ok)
}

func TestLRUEviction(t *testing.T) {
	t.Parallel()

	c, err := New(2, time.Minute)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestGetOrFetch(t *testing.T) {
	t.Parallel()

	c, err := New(8, time.Minute)
	require.NoError(t, err)

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return "value", nil
	}

	v, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	require.Equal(t, "value", v)

	v, err = c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	require.Equal(t, "value", v)
	require.Equal(t, 1, calls)

	c.Invalidate("k")
	_, err = c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestGetOrFetchNeverCachesErrors(t *testing.T) {
	t.Parallel()

	c, err := New(8, time.Minute)
	require.NoError(t, err)

	boom := errors.New("backend down")
	_, err = c.GetOrFetch(context.Background(), "k", func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", v)
}
