package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type cartRecord struct {
	bun.BaseModel `bun:"table:carts,alias:c"`

	ID             string     `bun:"id,pk"`
	Shop           string     `bun:"shop,notnull"`
	CartID         string     `bun:"cart_id,notnull"`
	CustomerEmail  string     `bun:"customer_email"`
	IsGuest        bool       `bun:"is_guest,notnull"`
	Status         string     `bun:"status,notnull"`
	RecoveryToken  string     `bun:"recovery_token"`
	FirstItemTitle string     `bun:"first_item_title"`
	EmailSentAt    *time.Time `bun:"email_sent_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type shopRecord struct {
	bun.BaseModel `bun:"table:shops,alias:s"`

	ID          string    `bun:"id,pk"`
	Domain      string    `bun:"domain,notnull"`
	AccessToken string    `bun:"access_token,notnull"`
	InstalledAt time.Time `bun:"installed_at,nullzero,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:cart_webhook_deliveries,alias:cwd"`

	ID         string    `bun:"id,pk"`
	Shop       string    `bun:"shop,notnull"`
	DeliveryID string    `bun:"delivery_id,notnull"`
	Topic      string    `bun:"topic,notnull"`
	Status     string    `bun:"status,notnull"`
	Attempts   int       `bun:"attempts,notnull"`
	LastError  string    `bun:"last_error"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type notificationDispatchRecord struct {
	bun.BaseModel `bun:"table:cart_notification_dispatches,alias:cnd"`

	ID        string     `bun:"id,pk"`
	Shop      string     `bun:"shop,notnull"`
	CartID    string     `bun:"cart_id,notnull"`
	Status    string     `bun:"status,notnull"`
	Attempts  int        `bun:"attempts,notnull"`
	LastError string     `bun:"last_error"`
	SentAt    *time.Time `bun:"sent_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
