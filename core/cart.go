package core

import (
	"strings"
	"time"
)

// CartStatus tracks the cart lifecycle. Transitions are monotonic: PENDING
// moves to CONVERTED or ABANDONED exactly once and never back.
type CartStatus string

const (
	CartStatusPending   CartStatus = "PENDING"
	CartStatusConverted CartStatus = "CONVERTED"
	CartStatusAbandoned CartStatus = "ABANDONED"
)

// Cart is the durable record of one platform cart. ID is the platform cart
// id and is unique per shop, not globally. EmailSentAt is set exactly once,
// after a successful notification dispatch, and never cleared.
type Cart struct {
	ID             string
	Shop           string
	CustomerEmail  string
	IsGuest        bool
	Status         CartStatus
	RecoveryToken  string
	FirstItemTitle string
	EmailSentAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NotifiableAt reports whether the cart is past the abandonment window and
// still awaiting its one notification.
func (c Cart) NotifiableAt(now time.Time, window time.Duration) bool {
	if c.Status != CartStatusPending || c.EmailSentAt != nil {
		return false
	}
	return !c.CreatedAt.After(now.Add(-window))
}

// RecoveryURL is the storefront link that restores the cart contents.
func (c Cart) RecoveryURL() string {
	shop := strings.TrimSpace(c.Shop)
	token := strings.TrimSpace(c.RecoveryToken)
	if shop == "" || token == "" {
		return ""
	}
	return "https://" + shop + "/cart/" + token
}

// UpsertCartInput carries the identity fields a webhook delivery may
// refresh. Lifecycle fields are deliberately absent: replays and updates
// must never touch status, created_at, or email_sent_at.
type UpsertCartInput struct {
	ID             string
	Shop           string
	CustomerEmail  string
	IsGuest        bool
	RecoveryToken  string
	FirstItemTitle string
	ObservedAt     time.Time
}

func (in UpsertCartInput) Validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return ValidationFailure("core: cart id is required")
	}
	if strings.TrimSpace(in.Shop) == "" {
		return ValidationFailure("core: shop domain is required")
	}
	if !in.IsGuest && strings.TrimSpace(in.CustomerEmail) == "" {
		return ValidationFailure("core: customer email is required for non-guest carts")
	}
	if in.ObservedAt.IsZero() {
		return ValidationFailure("core: observed-at timestamp is required")
	}
	return nil
}
