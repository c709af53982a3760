package mail

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/goliatone/go-cart-recovery/core"
)

// sendClient is the slice of the SendGrid client the dispatcher uses.
type sendClient interface {
	Send(email *sgmail.SGMailV3) (*rest.Response, error)
}

type Config struct {
	APIKey            string
	FromAddress       string
	FromName          string
	FallbackRecipient string
}

// SendGridDispatcher delivers one notification per Send call and never
// retries internally; the scheduler's next tick owns retry.
type SendGridDispatcher struct {
	client   sendClient
	from     *sgmail.Email
	fallback string
	logger   core.Logger
}

func NewSendGridDispatcher(cfg Config) (*SendGridDispatcher, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("mail: sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return nil, fmt.Errorf("mail: from address is required")
	}
	return &SendGridDispatcher{
		client:   sendgrid.NewSendClient(strings.TrimSpace(cfg.APIKey)),
		from:     sgmail.NewEmail(strings.TrimSpace(cfg.FromName), strings.TrimSpace(cfg.FromAddress)),
		fallback: strings.TrimSpace(cfg.FallbackRecipient),
		logger:   glog.Nop(),
	}, nil
}

func (d *SendGridDispatcher) WithLogger(logger core.Logger) *SendGridDispatcher {
	if d != nil && logger != nil {
		d.logger = logger
	}
	return d
}

func (d *SendGridDispatcher) Send(_ context.Context, notification core.Notification) error {
	if d == nil || d.client == nil {
		return fmt.Errorf("mail: sendgrid dispatcher is not configured")
	}

	message := Compose(notification)
	recipient := message.To
	if recipient == "" {
		// Guest carts have no resolved address; the fallback inbox keeps
		// the dispatch observable instead of silently dropping it.
		recipient = d.fallback
	}
	if recipient == "" {
		return fmt.Errorf("mail: no recipient for cart %s/%s", notification.Shop, notification.CartID)
	}

	email := sgmail.NewSingleEmail(
		d.from,
		message.Subject,
		sgmail.NewEmail("", recipient),
		message.Plain,
		message.HTML,
	)
	response, err := d.client.Send(email)
	if err != nil {
		return fmt.Errorf("mail: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("mail: sendgrid send failed: status=%d body=%s", response.StatusCode, response.Body)
	}

	d.logger.Info("abandonment email delivered",
		"shop", notification.Shop,
		"cart_id", notification.CartID,
		"status", response.StatusCode,
	)
	return nil
}

var _ core.NotificationSender = (*SendGridDispatcher)(nil)
