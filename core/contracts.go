package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CartStore is the single source of truth for cart state. All cross-process
// coordination happens through its conditional updates; callers never hold a
// store transaction open across an external call.
type CartStore interface {
	Upsert(ctx context.Context, in UpsertCartInput) (Cart, error)
	Get(ctx context.Context, shop string, id string) (Cart, error)
	// ListNotifiable returns pending carts created at or before cutoff that
	// have never been emailed, oldest first.
	ListNotifiable(ctx context.Context, cutoff time.Time, limit int) ([]Cart, error)
	// MarkConverted moves a pending cart to CONVERTED. Returns false when the
	// cart was not pending anymore, which callers treat as already settled.
	MarkConverted(ctx context.Context, shop string, id string) (bool, error)
	// MarkNotified records the one-time notification send. The update is
	// conditional on email_sent_at still being null and status still PENDING;
	// at most one caller ever sees true for a given cart.
	MarkNotified(ctx context.Context, shop string, id string, at time.Time) (bool, error)
}

// DispatchClaims serializes concurrent notify attempts per cart. Claim wins
// for exactly one caller; a released claim becomes claimable again on the
// next scheduler tick, a sent claim never does.
type DispatchClaims interface {
	Claim(ctx context.Context, shop string, cartID string) (bool, error)
	MarkSent(ctx context.Context, shop string, cartID string) error
	Release(ctx context.Context, shop string, cartID string, cause error) error
}

// ConversionChecker asks the platform's order system whether the cart's
// checkout completed. A non-nil error means the answer is inconclusive:
// callers must leave the cart untouched and retry on the next pass, never
// treat it as "not converted".
type ConversionChecker interface {
	Converted(ctx context.Context, shop string, recoveryToken string) (bool, error)
}

type Notification struct {
	CartID         string
	Shop           string
	Recipient      string
	RecoveryToken  string
	FirstItemTitle string
}

// NotificationSender delivers one message per invocation and never retries
// internally; retry is the scheduler's job via its next tick.
type NotificationSender interface {
	Send(ctx context.Context, msg Notification) error
}

// CartEvent is the relay wire shape, keyed by cart id on the topic.
type CartEvent struct {
	ID            string     `json:"id"`
	Shop          string     `json:"shop"`
	CustomerEmail *string    `json:"customerEmail"`
	IsGuest       bool       `json:"isGuest"`
	CreatedAt     time.Time  `json:"createdAt"`
	Status        CartStatus `json:"status"`
}

type CartEventPublisher interface {
	Publish(ctx context.Context, event CartEvent) error
	Close() error
}

type CustomerProfile struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	OrderCount int
}

// CustomerDirectory resolves a customer profile by exact case-insensitive
// email match over a bounded directory page. Candidate order decides which
// address wins; the page ordering is not contractually stable.
type CustomerDirectory interface {
	FindByEmail(ctx context.Context, shop string, candidates []string) (CustomerProfile, bool, error)
}

// ShopTokenStore resolves the per-shop Admin API access token. The OAuth
// flow that provisions tokens is an external collaborator.
type ShopTokenStore interface {
	AccessToken(ctx context.Context, shop string) (string, error)
}
