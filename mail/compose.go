// Package mail renders and delivers the abandonment notification.
package mail

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-cart-recovery/core"
)

const recoverySubject = "You left something in your cart!"

// Message is a fully rendered notification ready for a delivery backend.
type Message struct {
	To      string
	Subject string
	Plain   string
	HTML    string
}

// Compose renders the recovery email. The item reference falls back to
// "your cart" when the cart had no usable line item title.
func Compose(notification core.Notification) Message {
	item := strings.TrimSpace(notification.FirstItemTitle)
	if item == "" {
		item = "your cart"
	}
	link := core.Cart{
		Shop:          notification.Shop,
		RecoveryToken: notification.RecoveryToken,
	}.RecoveryURL()

	plain := fmt.Sprintf(
		"Hi there,\n\nYou left %s behind. Your items are saved and waiting for you.\n\nPick up where you left off: %s\n",
		item,
		link,
	)
	html := fmt.Sprintf(
		`<p>Hi there,</p><p>You left <strong>%s</strong> behind. Your items are saved and waiting for you.</p><p><a href="%s">Pick up where you left off</a></p>`,
		item,
		link,
	)
	return Message{
		To:      strings.TrimSpace(notification.Recipient),
		Subject: recoverySubject,
		Plain:   plain,
		HTML:    html,
	}
}
