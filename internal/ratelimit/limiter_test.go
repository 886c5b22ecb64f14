package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewUnlimited(t *testing.T) {
	l := New("OpenLibrary", 0)
	require.True(t, l.Unlimited())
	require.Equal(t, "OpenLibrary", l.Name())

	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
}

func TestWaitPacesRequests(t *testing.T) {
	l := New("test", 20)
	require.False(t, l.Unlimited())

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	// First token is immediate, the next two need ~50ms each.
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestWaitCancelledContext(t *testing.T) {
	l := New("slow", 0.001)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit wait for slow")
}
