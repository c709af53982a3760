package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/goliatone/go-cart-recovery/core"
)

func TestComposeWithItemTitle(t *testing.T) {
	message := Compose(core.Notification{
		CartID:         "1001",
		Shop:           "demo.myshopify.com",
		Recipient:      "a@x.com",
		RecoveryToken:  "tok_1",
		FirstItemTitle: "Blue Mug",
	})

	if message.Subject != "You left something in your cart!" {
		t.Fatalf("unexpected subject %q", message.Subject)
	}
	if message.To != "a@x.com" {
		t.Fatalf("unexpected recipient %q", message.To)
	}
	if !strings.Contains(message.Plain, "Blue Mug") {
		t.Fatalf("plain body must name the item: %q", message.Plain)
	}
	if !strings.Contains(message.HTML, "https://demo.myshopify.com/cart/tok_1") {
		t.Fatalf("html body must carry the recovery link: %q", message.HTML)
	}
}

func TestComposeFallsBackToGenericItem(t *testing.T) {
	message := Compose(core.Notification{
		Shop:          "demo.myshopify.com",
		RecoveryToken: "tok_1",
	})
	if !strings.Contains(message.Plain, "your cart") {
		t.Fatalf("expected generic item reference, got %q", message.Plain)
	}
}

type stubSendClient struct {
	sent   []*sgmail.SGMailV3
	status int
	err    error
}

func (s *stubSendClient) Send(email *sgmail.SGMailV3) (*rest.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, email)
	status := s.status
	if status == 0 {
		status = 202
	}
	return &rest.Response{StatusCode: status}, nil
}

func newTestDispatcher(t *testing.T, client sendClient, fallback string) *SendGridDispatcher {
	t.Helper()
	dispatcher, err := NewSendGridDispatcher(Config{
		APIKey:            "sg_test",
		FromAddress:       "no-reply@demo.myshopify.com",
		FromName:          "Demo Shop",
		FallbackRecipient: fallback,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	dispatcher.client = client
	return dispatcher
}

func TestSendGridDispatcher_SendsToRecipient(t *testing.T) {
	client := &stubSendClient{}
	dispatcher := newTestDispatcher(t, client, "ops@demo.myshopify.com")

	err := dispatcher.Send(context.Background(), core.Notification{
		CartID:        "1001",
		Shop:          "demo.myshopify.com",
		Recipient:     "a@x.com",
		RecoveryToken: "tok_1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(client.sent))
	}
	personalizations := client.sent[0].Personalizations
	if len(personalizations) != 1 || len(personalizations[0].To) != 1 {
		t.Fatalf("expected a single recipient personalization")
	}
	if personalizations[0].To[0].Address != "a@x.com" {
		t.Fatalf("unexpected recipient %q", personalizations[0].To[0].Address)
	}
}

func TestSendGridDispatcher_GuestFallsBackToOpsInbox(t *testing.T) {
	client := &stubSendClient{}
	dispatcher := newTestDispatcher(t, client, "ops@demo.myshopify.com")

	err := dispatcher.Send(context.Background(), core.Notification{
		CartID:        "1002",
		Shop:          "demo.myshopify.com",
		RecoveryToken: "tok_2",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.sent[0].Personalizations[0].To[0].Address != "ops@demo.myshopify.com" {
		t.Fatalf("expected fallback recipient")
	}
}

func TestSendGridDispatcher_NoRecipientFails(t *testing.T) {
	dispatcher := newTestDispatcher(t, &stubSendClient{}, "")

	err := dispatcher.Send(context.Background(), core.Notification{
		CartID: "1003",
		Shop:   "demo.myshopify.com",
	})
	if err == nil {
		t.Fatalf("expected error without any recipient")
	}
}

func TestSendGridDispatcher_UpstreamFailuresSurface(t *testing.T) {
	dispatcher := newTestDispatcher(t, &stubSendClient{err: errors.New("dial tcp: timeout")}, "ops@x.com")
	if err := dispatcher.Send(context.Background(), core.Notification{Recipient: "a@x.com"}); err == nil {
		t.Fatalf("transport errors must surface")
	}

	dispatcher = newTestDispatcher(t, &stubSendClient{status: 401}, "ops@x.com")
	if err := dispatcher.Send(context.Background(), core.Notification{Recipient: "a@x.com"}); err == nil {
		t.Fatalf("4xx responses must surface as errors")
	}
}
