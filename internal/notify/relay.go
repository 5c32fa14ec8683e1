package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/events"
)

// Handler consumes one domain event.
type Handler interface {
	Notify(ctx context.Context, ev events.Event) error
}

// Relay reads the domain event stream through a consumer group and hands every
// entry to the handlers. Entries are acknowledged only after all handlers succeed;
// failed entries stay pending and are reclaimed once they have idled for MinIdle.
type Relay struct {
	Client   *redis.Client
	Stream   string
	Group    string
	Consumer string
	Handlers []Handler
	Batch    int64
	Block    time.Duration
	MinIdle  time.Duration
}

func (r *Relay) stream() string {
	if r.Stream == "" {
		return events.DefaultStream
	}
	return r.Stream
}

func (r *Relay) group() string {
	if r.Group == "" {
		return "notify"
	}
	return r.Group
}

func (r *Relay) consumer() string {
	if r.Consumer == "" {
		return "worker-1"
	}
	return r.Consumer
}

// Ensure creates the consumer group when missing.
func (r *Relay) Ensure(ctx context.Context) error {
	if r.Client == nil {
		return errors.New("notify: redis client not configured")
	}
	err := r.Client.XGroupCreateMkStream(ctx, r.stream(), r.group(), "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run processes the stream until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Ensure(ctx); err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)
	for {
		if _, err := r.Reclaim(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("reclaim pending events")
		}
		if _, err := r.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("process events")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOnce reads one batch of new entries and returns how many were acknowledged.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 20
	}
	block := r.Block
	if block <= 0 {
		block = 2 * time.Second
	}
	streams, err := r.Client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group(),
		Consumer: r.consumer(),
		Streams:  []string{r.stream(), ">"},
		Count:    batch,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	acked := 0
	for _, s := range streams {
		acked += r.handle(ctx, s.Messages)
	}
	return acked, nil
}

// Reclaim takes over entries that another consumer left pending for longer than MinIdle.
func (r *Relay) Reclaim(ctx context.Context) (int, error) {
	minIdle := r.MinIdle
	if minIdle <= 0 {
		minIdle = time.Minute
	}
	msgs, _, err := r.Client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.stream(),
		Group:    r.group(),
		Consumer: r.consumer(),
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    r.Batch,
	}).Result()
	if err != nil {
		return 0, err
	}
	return r.handle(ctx, msgs), nil
}

func (r *Relay) handle(ctx context.Context, msgs []redis.XMessage) int {
	logger := zerolog.Ctx(ctx)
	acked := 0
	for _, msg := range msgs {
		ev, err := decode(msg)
		if err != nil {
			// Poison entries would be redelivered forever; log and drop them.
			logger.Error().Err(err).Str("entry", msg.ID).Msg("discard undecodable event")
			_ = r.Client.XAck(ctx, r.stream(), r.group(), msg.ID).Err()
			continue
		}
		var failed error
		for _, h := range r.Handlers {
			if err := h.Notify(ctx, ev); err != nil {
				failed = errors.Join(failed, err)
			}
		}
		if failed != nil {
			logger.Warn().Err(failed).Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Msg("event handling failed, leaving pending")
			continue
		}
		if err := r.Client.XAck(ctx, r.stream(), r.group(), msg.ID).Err(); err != nil {
			logger.Error().Err(err).Str("entry", msg.ID).Msg("ack event")
			continue
		}
		acked++
	}
	return acked
}

func decode(msg redis.XMessage) (events.Event, error) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return events.Event{}, errors.New("stream entry has no event field")
	}
	var ev events.Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return events.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
