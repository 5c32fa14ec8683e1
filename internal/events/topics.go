package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicCouponCreated      = "coupon.created"
	TopicCouponDeleted      = "coupon.deleted"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderStatusChanged,
		TopicCouponCreated,
		TopicCouponDeleted,
	}
}
