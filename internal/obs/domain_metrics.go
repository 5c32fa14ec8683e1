package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponLookupTotal counts coupon code lookups by outcome (applied, not_found, error).
	CouponLookupTotal *prometheus.CounterVec
	// ShippingLookupTotal counts postal code resolutions by source (cache, upstream) and outcome.
	ShippingLookupTotal *prometheus.CounterVec
	// ShippingLookupLatency records upstream postal code lookup latency in milliseconds.
	ShippingLookupLatency prometheus.Histogram
	// ShippingStaleDiscarded counts lookups whose result arrived after a newer postal code was entered.
	ShippingStaleDiscarded prometheus.Counter
	// CheckoutTotal counts purchase confirmations by outcome.
	CheckoutTotal *prometheus.CounterVec
	// OrderStatusTransitions counts admin order status changes by target status.
	OrderStatusTransitions *prometheus.CounterVec
	// WebhookDeliveriesTotal counts webhook deliveries by outcome.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookDeliveryLatency records webhook delivery latency in milliseconds.
	WebhookDeliveryLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_lookup_total",
			Help:      "Count of coupon code lookups by outcome.",
		}, []string{"result"})
		ShippingLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_lookup_total",
			Help:      "Count of postal code resolutions by source and outcome.",
		}, []string{"source", "result"})
		ShippingLookupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shipping_lookup_duration_ms",
			Help:      "Latency of upstream postal code lookups in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		ShippingStaleDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_lookup_stale_total",
			Help:      "Number of shipping lookups discarded because a newer postal code superseded them.",
		})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of purchase confirmations by outcome.",
		}, []string{"result"})
		OrderStatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Count of order status changes by target status.",
		}, []string{"status"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook deliveries by outcome.",
		}, []string{"result"})
		WebhookDeliveryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_latency_ms",
			Help:      "Webhook delivery latency in milliseconds, retries included.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})

		CouponLookupTotal = register(reg, CouponLookupTotal)
		ShippingLookupTotal = register(reg, ShippingLookupTotal)
		ShippingLookupLatency = register(reg, ShippingLookupLatency)
		ShippingStaleDiscarded = register(reg, ShippingStaleDiscarded)
		CheckoutTotal = register(reg, CheckoutTotal)
		OrderStatusTransitions = register(reg, OrderStatusTransitions)
		WebhookDeliveriesTotal = register(reg, WebhookDeliveriesTotal)
		WebhookDeliveryLatency = register(reg, WebhookDeliveryLatency)
	})
}

// Recording helpers are no-ops until MustRegisterDomainMetrics has run.

func RecordCouponLookup(result string) {
	if CouponLookupTotal != nil {
		CouponLookupTotal.WithLabelValues(result).Inc()
	}
}

func RecordShippingLookup(source, result string) {
	if ShippingLookupTotal != nil {
		ShippingLookupTotal.WithLabelValues(source, result).Inc()
	}
}

func ObserveShippingLatency(d time.Duration) {
	if ShippingLookupLatency != nil {
		ShippingLookupLatency.Observe(DurationMillis(d))
	}
}

func RecordShippingStale() {
	if ShippingStaleDiscarded != nil {
		ShippingStaleDiscarded.Inc()
	}
}

func RecordCheckout(result string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
}

func RecordOrderStatus(status string) {
	if OrderStatusTransitions != nil {
		OrderStatusTransitions.WithLabelValues(status).Inc()
	}
}

func RecordWebhookDelivery(result string, d time.Duration) {
	if WebhookDeliveriesTotal != nil {
		WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if WebhookDeliveryLatency != nil {
		WebhookDeliveryLatency.WithLabelValues(result).Observe(DurationMillis(d))
	}
}
