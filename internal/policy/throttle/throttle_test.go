package throttle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleWaitPacesSameHost(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx, "https://test.com/a"))

	start := time.Now()
	require.NoError(t, th.Wait(ctx, "https://TEST.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.Equal(t, 1, th.Hosts())
}

func TestThrottleDifferentHostsIndependent(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx, "https://a.com/1"))
	start := time.Now()
	require.NoError(t, th.Wait(ctx, "https://b.com/1"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, 2, th.Hosts())
}

func TestThrottleWaitHonorsContext(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, th.Wait(context.Background(), "https://slow.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, th.Wait(ctx, "https://slow.com"))
}

func TestThrottleDisabled(t *testing.T) {
	t.Parallel()

	th := New(Config{})
	require.False(t, th.Enabled())
	for range 100 {
		require.NoError(t, th.Wait(context.Background(), "https://a.com"))
	}
	require.Zero(t, th.Hosts())

	var nilThrottle *Throttle
	require.NoError(t, nilThrottle.Wait(context.Background(), "https://a.com"))
}

func TestThrottleHostTableBounded(t *testing.T) {
	t.Parallel()

	th := New(Config{Name: "enrich", RPS: 1000, Burst: 1, MaxHosts: 8})
	ctx := context.Background()
	for i := range 100 {
		require.NoError(t, th.Wait(ctx, fmt.Sprintf("https://host-%d.example/", i)))
	}
	require.Equal(t, 8, th.Hosts())
}

func TestThrottleDefaultHostBound(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 1000, Burst: 5})
	ctx := context.Background()
	for i := range DefaultMaxHosts + 10 {
		require.NoError(t, th.Wait(ctx, fmt.Sprintf("https://h%d.example/", i)))
	}
	require.Equal(t, DefaultMaxHosts, th.Hosts())
}

func TestThrottleRecentHostKeepsBucket(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 10, Burst: 1, MaxHosts: 2})
	ctx := context.Background()
	require.NoError(t, th.Wait(ctx, "https://hot.example/a"))
	require.NoError(t, th.Wait(ctx, "https://cold.example/a"))
	// Touching hot again makes cold the eviction candidate.
	th.limiterFor("hot.example")
	require.NoError(t, th.Wait(ctx, "https://other.example/a"))

	start := time.Now()
	require.NoError(t, th.Wait(ctx, "https://hot.example/b"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, 2, th.Hosts())
}
