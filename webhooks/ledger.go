package webhooks

import (
	"context"
	"time"
)

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusProcessed = "processed"
	DeliveryStatusFailed    = "failed"
)

// DeliveryRecord tracks a single webhook delivery attempt across retries.
type DeliveryRecord struct {
	ID         string
	Shop       string
	DeliveryID string
	Topic      string
	Status     string
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DeliveryLedger deduplicates webhook deliveries by (shop, delivery id).
// Reserve returns seen=true when the delivery was recorded before; the
// caller inspects the record status to decide between acknowledging a
// processed duplicate and reprocessing a failed one.
type DeliveryLedger interface {
	Reserve(ctx context.Context, shop string, deliveryID string, topic string) (DeliveryRecord, bool, error)
	MarkProcessed(ctx context.Context, shop string, deliveryID string) error
	MarkFailed(ctx context.Context, shop string, deliveryID string, cause error) error
}
