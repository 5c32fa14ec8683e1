package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/config"
	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/notify"
)

func TestBuildHandlers(t *testing.T) {
	cfg := &config.Config{
		NotifyEmailEnabled: true,
		WebhookEndpoints:   "https://hooks.example.com/orders|s3cret|order.created;order.status_changed",
	}
	handlers, err := buildHandlers(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, handlers, 2)
	require.IsType(t, notify.EmailNotifier{}, handlers[0])
	dispatcher, ok := handlers[1].(*notify.Dispatcher)
	require.True(t, ok)
	require.Len(t, dispatcher.Endpoints, 1)
	require.True(t, dispatcher.Endpoints[0].Subscribed("order.created"))
}

func TestBuildHandlersFallsBackToLog(t *testing.T) {
	handlers, err := buildHandlers(&config.Config{}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, []notify.Handler{events.LogNotifier{}}, handlers)
}

func TestBuildHandlersRejectsBadEndpoint(t *testing.T) {
	_, err := buildHandlers(&config.Config{WebhookEndpoints: "ftp://nope"}, nil, zerolog.Nop())
	require.Error(t, err)
}
