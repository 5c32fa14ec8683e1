package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MemoryStore keeps the most recent events in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemoryStore retains up to limit events; limit <= 0 keeps 1000.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryStore{limit: limit}
}

// Append stores ev, evicting the oldest event once the limit is reached.
func (m *MemoryStore) Append(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if over := len(m.events) - m.limit; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

// Events returns recorded events, oldest first, optionally filtered by topic.
func (m *MemoryStore) Events(topic string) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		if topic == "" || ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// DefaultStream is the Redis stream that carries domain events.
const DefaultStream = "events:domain"

// RedisStreamStore appends events to a capped Redis stream.
type RedisStreamStore struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

// Append adds ev to the stream as a single JSON field.
func (s RedisStreamStore) Append(ctx context.Context, ev Event) error {
	if s.Client == nil {
		return errors.New("events: redis client not configured")
	}
	stream := s.Stream
	if stream == "" {
		stream = DefaultStream
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"topic": ev.Topic, "event": data},
	}
	if s.MaxLen > 0 {
		args.MaxLen = s.MaxLen
		args.Approx = true
	}
	if err := s.Client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// LogNotifier writes every event to the context logger.
type LogNotifier struct{}

// Notify logs the event.
func (LogNotifier) Notify(ctx context.Context, ev Event) error {
	zerolog.Ctx(ctx).Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID).
		RawJSON("payload", ev.Payload).
		Msg("domain_event")
	return nil
}
