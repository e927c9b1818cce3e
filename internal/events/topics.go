package events

// Razorpay webhook event types the service recognises.
const (
	TopicPaymentAuthorized = "payment.authorized"
	TopicPaymentCaptured   = "payment.captured"
	TopicPaymentFailed     = "payment.failed"
	TopicOrderPaid         = "order.paid"
	TopicRefundCreated     = "refund.created"
	TopicRefundProcessed   = "refund.processed"
	TopicRefundFailed      = "refund.failed"
	TopicDisputeCreated    = "payment.dispute.created"
)

// DefaultTopics returns the canonical list of recognised topics.
func DefaultTopics() []string {
	return []string{
		TopicPaymentAuthorized,
		TopicPaymentCaptured,
		TopicPaymentFailed,
		TopicOrderPaid,
		TopicRefundCreated,
		TopicRefundProcessed,
		TopicRefundFailed,
		TopicDisputeCreated,
	}
}

// MetricLabel maps a topic onto a bounded label set so arbitrary event names
// sent by a caller cannot blow up metric cardinality.
func MetricLabel(topic string) string {
	for _, known := range DefaultTopics() {
		if known == topic {
			return topic
		}
	}
	return "other"
}
