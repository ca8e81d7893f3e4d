package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t:", 0)

	_, err := c.Get(ctx, "k")
	require.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, _ = c.Exists(ctx, "k")
	require.False(t, ok)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, "memory", st.Driver)
	require.Equal(t, int64(1), st.Hits)
	require.Equal(t, int64(1), st.Misses)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)
	require.NoError(t, c.Set(ctx, "short", "1", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "short")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "memcached"})
	require.Error(t, err)
}
