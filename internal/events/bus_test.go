package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/events"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := events.NewMemoryStore(10)
	notifier := &captureNotifier{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return fixed },
	}

	payload := map[string]any{"orderId": "123"}
	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, "123", payload)
	require.NoError(t, err)
	require.Equal(t, fixed, event.OccurredAt)

	stored := store.Events(events.TopicOrderCreated)
	require.Len(t, stored, 1)
	require.Equal(t, event.ID, stored[0].ID)
	require.JSONEq(t, `{"orderId":"123"}`, string(stored[0].Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["orderId"])
}

func TestEmitValidatesInput(t *testing.T) {
	var nilBus *events.Bus
	_, err := nilBus.Emit(context.Background(), events.TopicOrderCreated, "1", nil)
	require.Error(t, err)

	bus := events.Bus{Store: events.NewMemoryStore(0)}
	_, err = bus.Emit(context.Background(), " ", "1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "1", "{broken")
	require.Error(t, err)

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "1", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("boom")
	bus := events.Bus{
		Store: events.NewMemoryStore(0),
		Notifiers: []events.Notifier{
			events.NotifierFunc(func(context.Context, events.Event) error { return boom }),
			nil,
			events.LogNotifier{},
		},
	}
	ev, err := bus.Emit(context.Background(), events.TopicCouponCreated, "BEMVINDO", map[string]string{"code": "BEMVINDO"})
	require.ErrorIs(t, err, boom)
	require.NotEmpty(t, ev.ID)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	store := events.NewMemoryStore(2)
	bus := events.Bus{Store: store}
	for _, id := range []string{"a", "b", "c"} {
		_, err := bus.Emit(context.Background(), events.TopicOrderCreated, id, nil)
		require.NoError(t, err)
	}
	got := store.Events("")
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].AggregateID)
	require.Equal(t, "c", got[1].AggregateID)
}

func TestRedisStreamStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := events.Bus{Store: events.RedisStreamStore{Client: client, Stream: "test:events", MaxLen: 100}}
	_, err = bus.Emit(context.Background(), events.TopicOrderStatusChanged, "o-1", map[string]string{"status": "shipped"})
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), "test:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, events.TopicOrderStatusChanged, entries[0].Values["topic"])

	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &ev))
	require.Equal(t, "o-1", ev.AggregateID)

	_, err = (&events.Bus{Store: events.RedisStreamStore{}}).Emit(context.Background(), events.TopicOrderCreated, "x", nil)
	require.Error(t, err)
}
