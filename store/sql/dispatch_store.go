package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cart-recovery/core"
)

const (
	dispatchStatusSending = "sending"
	dispatchStatusSent    = "sent"
	dispatchStatusFailed  = "failed"

	// A sending claim whose owner crashed before settling would otherwise
	// block the cart forever. After this age it is up for takeover.
	staleClaimAge = 15 * time.Minute
)

// NotificationDispatchStore is the dispatch claim ledger. The unique index
// on (shop, cart_id) makes Claim a single-winner operation: the insert or
// the conditional reclaim update succeeds for exactly one caller.
type NotificationDispatchStore struct {
	db   *bun.DB
	repo repository.Repository[*notificationDispatchRecord]
}

func NewNotificationDispatchStore(db *bun.DB) (*NotificationDispatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationDispatchRecord](db, notificationDispatchHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification dispatch repository wiring: %w", err)
		}
	}
	return &NotificationDispatchStore{db: db, repo: repo}, nil
}

func (s *NotificationDispatchStore) Claim(ctx context.Context, shop string, cartID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	shop = strings.TrimSpace(shop)
	cartID = strings.TrimSpace(cartID)
	if shop == "" || cartID == "" {
		return false, fmt.Errorf("sqlstore: shop and cart id are required")
	}

	now := time.Now().UTC()
	record := &notificationDispatchRecord{
		ID:        uuid.NewString(),
		Shop:      shop,
		CartID:    cartID,
		Status:    dispatchStatusSending,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return false, err
		}
		// A claim row exists. Failed claims and sending claims gone stale
		// (owner crashed before settling) are reclaimable; a fresh sending
		// row stays with its owner and a sent row never moves.
		result, updateErr := s.db.NewUpdate().
			Model((*notificationDispatchRecord)(nil)).
			Set("status = ?", dispatchStatusSending).
			Set("attempts = attempts + 1").
			Set("updated_at = ?", now).
			Where("shop = ?", shop).
			Where("cart_id = ?", cartID).
			Where("(status = ? OR (status = ? AND updated_at < ?))",
				dispatchStatusFailed, dispatchStatusSending, now.Add(-staleClaimAge)).
			Exec(ctx)
		if updateErr != nil {
			return false, updateErr
		}
		return rowsAffected(result), nil
	}
	return true, nil
}

func (s *NotificationDispatchStore) MarkSent(ctx context.Context, shop string, cartID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model((*notificationDispatchRecord)(nil)).
		Set("status = ?", dispatchStatusSent).
		Set("sent_at = ?", now).
		Set("last_error = ''").
		Set("updated_at = ?", now).
		Where("shop = ?", strings.TrimSpace(shop)).
		Where("cart_id = ?", strings.TrimSpace(cartID)).
		Exec(ctx)
	return err
}

func (s *NotificationDispatchStore) Release(ctx context.Context, shop string, cartID string, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	_, err := s.db.NewUpdate().
		Model((*notificationDispatchRecord)(nil)).
		Set("status = ?", dispatchStatusFailed).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("shop = ?", strings.TrimSpace(shop)).
		Where("cart_id = ?", strings.TrimSpace(cartID)).
		Where("status = ?", dispatchStatusSending).
		Exec(ctx)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.DispatchClaims = (*NotificationDispatchStore)(nil)
