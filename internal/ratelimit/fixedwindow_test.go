package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowMemoryStore(t *testing.T) {
	store, err := NewFixedWindowStore(nil, "test")
	require.NoError(t, err)
	fw := NewFixedWindow(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := fw.Allow(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-i, remaining)
	}
	allowed, remaining, reset, err := fw.Allow(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = fw.Allow(ctx, "other", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestFixedWindowRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewFixedWindowStore(client, "")
	require.NoError(t, err)
	fw := NewFixedWindow(store)

	allowed, _, _, err := fw.Allow(context.Background(), "k", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, _, err = fw.Allow(context.Background(), "k", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestNewSelectsStrategy(t *testing.T) {
	l, err := New("off", nil)
	require.NoError(t, err)
	require.Nil(t, l)

	l, err = New("sliding", nil)
	require.NoError(t, err)
	require.IsType(t, &FixedWindow{}, l)

	l, err = New("sliding", redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	require.NoError(t, err)
	require.IsType(t, SlidingWindow{}, l)

	_, err = New("leaky", nil)
	require.Error(t, err)
}

func TestByClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "ip:10.0.0.1", ByClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "ip:203.0.113.9", ByClientIP(req))
}
