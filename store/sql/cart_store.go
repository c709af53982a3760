package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cart-recovery/core"
)

// CartStore persists cart state with the conditional updates the recheck
// pipeline relies on. Lifecycle transitions happen through guarded UPDATE
// statements so concurrent writers race on rows affected, not on reads.
type CartStore struct {
	db   *bun.DB
	repo repository.Repository[*cartRecord]
}

func NewCartStore(db *bun.DB) (*CartStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*cartRecord](db, cartHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid cart repository wiring: %w", err)
		}
	}
	return &CartStore{db: db, repo: repo}, nil
}

// Upsert inserts the cart on first sight and refreshes identity fields on
// replay. created_at, status, and email_sent_at are never part of the
// conflict update; lifecycle state survives any number of redeliveries.
func (s *CartStore) Upsert(ctx context.Context, in core.UpsertCartInput) (core.Cart, error) {
	if s == nil || s.db == nil {
		return core.Cart{}, fmt.Errorf("sqlstore: cart store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.Cart{}, err
	}

	observed := in.ObservedAt.UTC()
	record := &cartRecord{
		ID:             uuid.NewString(),
		Shop:           strings.TrimSpace(in.Shop),
		CartID:         strings.TrimSpace(in.ID),
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		IsGuest:        in.IsGuest,
		Status:         string(core.CartStatusPending),
		RecoveryToken:  strings.TrimSpace(in.RecoveryToken),
		FirstItemTitle: strings.TrimSpace(in.FirstItemTitle),
		CreatedAt:      observed,
		UpdatedAt:      observed,
	}

	query := s.db.NewInsert().
		Model(record).
		On("CONFLICT (shop, cart_id) DO UPDATE").
		Set("customer_email = EXCLUDED.customer_email").
		Set("is_guest = EXCLUDED.is_guest").
		Set("updated_at = EXCLUDED.updated_at")
	if record.RecoveryToken != "" {
		query = query.Set("recovery_token = EXCLUDED.recovery_token")
	}
	if record.FirstItemTitle != "" {
		query = query.Set("first_item_title = EXCLUDED.first_item_title")
	}
	if _, err := query.Exec(ctx); err != nil {
		return core.Cart{}, err
	}

	return s.Get(ctx, record.Shop, record.CartID)
}

func (s *CartStore) Get(ctx context.Context, shop string, id string) (core.Cart, error) {
	if s == nil || s.repo == nil {
		return core.Cart{}, fmt.Errorf("sqlstore: cart store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("shop", "=", strings.TrimSpace(shop)),
		repository.SelectBy("cart_id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Cart{}, err
	}
	if len(records) == 0 {
		return core.Cart{}, fmt.Errorf("sqlstore: cart not found for shop %q id %q", shop, id)
	}
	return cartToDomain(records[0]), nil
}

// ListNotifiable returns pending carts created at or before cutoff that have
// never been emailed, oldest first.
func (s *CartStore) ListNotifiable(ctx context.Context, cutoff time.Time, limit int) ([]core.Cart, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: cart store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.CartStatusPending)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.email_sent_at IS NULL").
				Where("?TableAlias.created_at <= ?", cutoff.UTC())
		}),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	carts := make([]core.Cart, 0, len(records))
	for _, record := range records {
		carts = append(carts, cartToDomain(record))
	}
	return carts, nil
}

// MarkConverted moves a pending cart to CONVERTED. Returns false when the
// row was not pending anymore.
func (s *CartStore) MarkConverted(ctx context.Context, shop string, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: cart store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*cartRecord)(nil)).
		Set("status = ?", string(core.CartStatusConverted)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("shop = ?", strings.TrimSpace(shop)).
		Where("cart_id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.CartStatusPending)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowsAffected(result), nil
}

// MarkNotified records the one-time notification send. Conditional on the
// row still being pending and unemailed, so at most one caller ever wins.
func (s *CartStore) MarkNotified(ctx context.Context, shop string, id string, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: cart store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*cartRecord)(nil)).
		Set("status = ?", string(core.CartStatusAbandoned)).
		Set("email_sent_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("shop = ?", strings.TrimSpace(shop)).
		Where("cart_id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.CartStatusPending)).
		Where("email_sent_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowsAffected(result), nil
}

func cartToDomain(record *cartRecord) core.Cart {
	if record == nil {
		return core.Cart{}
	}
	cart := core.Cart{
		ID:             record.CartID,
		Shop:           record.Shop,
		CustomerEmail:  record.CustomerEmail,
		IsGuest:        record.IsGuest,
		Status:         core.CartStatus(record.Status),
		RecoveryToken:  record.RecoveryToken,
		FirstItemTitle: record.FirstItemTitle,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.EmailSentAt != nil {
		value := *record.EmailSentAt
		cart.EmailSentAt = &value
	}
	return cart
}

func rowsAffected(result sql.Result) bool {
	if result == nil {
		return false
	}
	affected, err := result.RowsAffected()
	return err == nil && affected > 0
}

var _ core.CartStore = (*CartStore)(nil)
