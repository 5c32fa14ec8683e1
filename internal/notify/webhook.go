package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/obs"
	"github.com/noah-isme/digital-store/internal/resilience"
)

// Endpoint is a webhook subscriber. An empty topic list subscribes to every topic.
type Endpoint struct {
	URL    string
	Secret string
	Topics []string
}

// Subscribed reports whether the endpoint wants events of topic.
func (e Endpoint) Subscribed(topic string) bool {
	if len(e.Topics) == 0 {
		return true
	}
	for _, t := range e.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Dispatcher delivers domain events to webhook endpoints.
type Dispatcher struct {
	Endpoints []Endpoint
	HTTP      resilience.HTTPClient
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Now       func() time.Time
}

// Notify implements events.Notifier so the dispatcher can also run inline on the bus.
func (d *Dispatcher) Notify(ctx context.Context, ev events.Event) error {
	return d.Dispatch(ctx, ev)
}

// Dispatch sends ev to every subscribed endpoint. Endpoints that already accepted the
// event within ReplayTTL are skipped, so redelivered stream entries are not duplicated.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.Event) error {
	if d == nil {
		return nil
	}
	var joined error
	for _, ep := range d.Endpoints {
		if !ep.Subscribed(ev.Topic) {
			continue
		}
		start := time.Now()
		err := d.deliverOnce(ctx, ep, ev)
		result := "delivered"
		if err != nil {
			result = "failed"
			joined = errors.Join(joined, fmt.Errorf("deliver %s to %s: %w", ev.ID, ep.URL, err))
		}
		obs.RecordWebhookDelivery(result, time.Since(start))
	}
	return joined
}

func (d *Dispatcher) deliverOnce(ctx context.Context, ep Endpoint, ev events.Event) error {
	if d.Replay == nil || d.ReplayTTL <= 0 {
		_, err := d.Deliver(ctx, ep, ev)
		return err
	}
	key := replayKey(ep.URL, ev.ID.String())
	ok, err := d.Replay.Acquire(ctx, key, d.ReplayTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := d.Deliver(ctx, ep, ev); err != nil {
		_ = d.Replay.Release(context.Background(), key)
		return err
	}
	return nil
}

type envelope struct {
	EventID     string          `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Deliver performs one signed POST of ev to ep and returns the response status.
func (d *Dispatcher) Deliver(ctx context.Context, ep Endpoint, ev events.Event) (int, error) {
	ctx, span := otel.Tracer("digital-store/notify").Start(ctx, "webhook.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.url", ep.URL),
		attribute.String("event.topic", ev.Topic),
		attribute.String("event.id", ev.ID.String()),
	)
	if err := ValidateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	body, err := json.Marshal(envelope{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return 0, err
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	ts := now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "digital-store-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID.String())
	req.Header.Set("X-Event-Topic", ev.Topic)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, ev.ID.String(), body))

	resp, err := d.HTTP.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &resilience.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.StatusCode, nil
}

// ValidateURL accepts https endpoints, and plain http only for loopback hosts.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return errors.New("http webhook only allowed for localhost")
	default:
		return errors.New("webhook url must be http or https")
	}
}

// ComputeSignature is the hex HMAC-SHA256 of "<ts>.<eventID>.<body>" keyed by the endpoint secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// NewHTTPClient returns a retrying, traced client for webhook delivery.
func NewHTTPClient(timeout time.Duration, breaker *resilience.Breaker) resilience.HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return resilience.HTTPClient{
		Client:      &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:     breaker,
		BaseBackoff: 500 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
		Timeout:     timeout,
	}
}

// ParseEndpoints reads "url|secret|topic1;topic2" entries separated by commas.
func ParseEndpoints(raw string) ([]Endpoint, error) {
	var out []Endpoint
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		ep := Endpoint{URL: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			ep.Secret = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			for _, t := range strings.Split(parts[2], ";") {
				if t = strings.TrimSpace(t); t != "" {
					ep.Topics = append(ep.Topics, t)
				}
			}
		}
		if err := ValidateURL(ep.URL); err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ep.URL, err)
		}
		out = append(out, ep)
	}
	return out, nil
}

// ReplayProtector guards against sending duplicate deliveries within a TTL.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

func replayKey(endpointURL, eventID string) string {
	sum := sha256.Sum256([]byte(endpointURL))
	return fmt.Sprintf("wh:%s:%s", hex.EncodeToString(sum[:8]), eventID)
}
