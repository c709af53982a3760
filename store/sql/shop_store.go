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

// ShopStore keeps the per-shop Admin API credentials provisioned by the
// install flow.
type ShopStore struct {
	db   *bun.DB
	repo repository.Repository[*shopRecord]
}

func NewShopStore(db *bun.DB) (*ShopStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*shopRecord](db, shopHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid shop repository wiring: %w", err)
		}
	}
	return &ShopStore{db: db, repo: repo}, nil
}

// Upsert stores or rotates the access token for a shop domain.
func (s *ShopStore) Upsert(ctx context.Context, domain string, accessToken string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: shop store is not configured")
	}
	domain = strings.TrimSpace(domain)
	accessToken = strings.TrimSpace(accessToken)
	if domain == "" || accessToken == "" {
		return fmt.Errorf("sqlstore: shop domain and access token are required")
	}

	now := time.Now().UTC()
	record := &shopRecord{
		ID:          uuid.NewString(),
		Domain:      domain,
		AccessToken: accessToken,
		InstalledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (domain) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *ShopStore) AccessToken(ctx context.Context, shop string) (string, error) {
	if s == nil || s.repo == nil {
		return "", fmt.Errorf("sqlstore: shop store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("domain", "=", strings.TrimSpace(shop)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("sqlstore: no access token for shop %q", shop)
	}
	return records[0].AccessToken, nil
}

var _ core.ShopTokenStore = (*ShopStore)(nil)
