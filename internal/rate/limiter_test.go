package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return base }

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4|student01")
		require.NoError(t, err)
		require.True(t, res.Allowed, "hit %d", i)
		require.Equal(t, int64(3-i), res.Remaining)
	}

	res, err := l.Allow(ctx, "1.2.3.4|student01")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 55*time.Second, res.RetryAfter)

	// otra key no comparte cupo
	res, _ = l.Allow(ctx, "1.2.3.4|teacher01")
	require.True(t, res.Allowed)

	// ventana siguiente
	l.now = func() time.Time { return base.Add(time.Minute) }
	res, _ = l.Allow(ctx, "1.2.3.4|student01")
	require.True(t, res.Allowed)
	require.Equal(t, int64(1), res.CurrentHits)
}
