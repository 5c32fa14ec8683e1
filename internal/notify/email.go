package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/events"
)

// Mailer sends a transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes emails to the context logger instead of an SMTP relay.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	zerolog.Ctx(ctx).Info().Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("email queued")
	return nil
}

// Email is a message captured by MemoryMailer.
type Email struct {
	To      string
	Subject string
	Body    string
}

// MemoryMailer records messages in memory.
type MemoryMailer struct {
	mu     sync.Mutex
	Outbox []Email
}

func (m *MemoryMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of the outbox.
func (m *MemoryMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.Outbox...)
}

// EmailNotifier mails the customer about order events.
type EmailNotifier struct {
	Mail         Mailer
	TopicToggles map[string]bool
}

// Notify implements Handler and events.Notifier.
func (n EmailNotifier) Notify(ctx context.Context, ev events.Event) error {
	if n.Mail == nil {
		return nil
	}
	if enabled, ok := n.TopicToggles[ev.Topic]; ok && !enabled {
		return nil
	}
	if !strings.HasPrefix(ev.Topic, "order.") {
		return nil
	}
	payload := map[string]any{}
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := recipient(payload)
	if to == "" {
		return nil
	}
	return n.Mail.Send(ctx, to, subjectFor(ev.Topic, payload), bodyFor(ev, payload))
}

func recipient(payload map[string]any) string {
	for _, key := range []string{"customerEmail", "email"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

var statusSubjects = map[string]string{
	"processing": "Seu pedido está em preparação",
	"shipped":    "Seu pedido foi enviado",
	"delivered":  "Seu pedido foi entregue",
	"cancelled":  "Seu pedido foi cancelado",
}

func subjectFor(topic string, payload map[string]any) string {
	switch topic {
	case events.TopicOrderCreated:
		return "Pedido recebido"
	case events.TopicOrderStatusChanged:
		if status, ok := payload["status"].(string); ok {
			if subject, ok := statusSubjects[status]; ok {
				return subject
			}
		}
		return "Atualização do pedido"
	default:
		return "Notificação " + topic
	}
}

func bodyFor(ev events.Event, payload map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evento %s em %s.", ev.Topic, ev.OccurredAt.Format(time.RFC3339))
	if orderID, ok := payload["orderId"].(string); ok && orderID != "" {
		fmt.Fprintf(&b, "\nPedido: %s", orderID)
	}
	if total, ok := payload["total"].(string); ok && total != "" {
		fmt.Fprintf(&b, "\nTotal: R$ %s", total)
	}
	if method, ok := payload["paymentMethod"].(string); ok && method != "" {
		fmt.Fprintf(&b, "\nPagamento: %s", method)
	}
	return b.String()
}
