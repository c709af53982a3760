package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIngestHandler_GuestClassification(t *testing.T) {
	store := newMemCartStore()
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	handler.Now = testClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	cart, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   TopicCartCreate,
		Shop:    "demo.myshopify.com",
		Payload: []byte(`{"id": 11, "token": "tok_11", "line_items": [{"title": "Socks"}]}`),
	})
	if err != nil {
		t.Fatalf("handle guest cart: %v", err)
	}
	if !cart.IsGuest {
		t.Fatalf("expected guest cart")
	}
	if cart.CustomerEmail != "" {
		t.Fatalf("expected empty customer email, got %q", cart.CustomerEmail)
	}
	if cart.Status != CartStatusPending {
		t.Fatalf("expected PENDING status, got %s", cart.Status)
	}
}

func TestIngestHandler_IdempotentReplay(t *testing.T) {
	store := newMemCartStore()
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	handler.Now = testClock(t0)

	payload := []byte(`{"id": 12, "token": "tok_12", "customer": {"email": "a@x.com"}}`)
	evt := InboundEvent{Topic: TopicCartCreate, Shop: "demo.myshopify.com", Payload: payload}

	first, err := handler.Handle(context.Background(), evt)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	handler.Now = testClock(t0.Add(3 * time.Minute))
	second, err := handler.Handle(context.Background(), evt)
	if err != nil {
		t.Fatalf("replayed delivery: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected created_at to stay %v, got %v", first.CreatedAt, second.CreatedAt)
	}
	if len(store.carts) != 1 {
		t.Fatalf("expected exactly one cart row, got %d", len(store.carts))
	}
}

func TestIngestHandler_DirectoryMatchWins(t *testing.T) {
	store := newMemCartStore()
	directory := &fakeDirectory{
		profile: CustomerProfile{ID: "cus_1", Email: "a@x.com", FirstName: "Ada"},
		found:   true,
	}
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	handler.Directory = directory

	cart, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   TopicCartUpdate,
		Shop:    "demo.myshopify.com",
		Payload: []byte(`{"id": 13, "customer_email": "A@X.com"}`),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cart.IsGuest {
		t.Fatalf("expected resolved customer cart")
	}
	if cart.CustomerEmail != "a@x.com" {
		t.Fatalf("expected directory email, got %q", cart.CustomerEmail)
	}
	if directory.calls != 1 {
		t.Fatalf("expected one directory lookup, got %d", directory.calls)
	}
}

func TestIngestHandler_DirectoryFailureDegradesToGuest(t *testing.T) {
	store := newMemCartStore()
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	handler.Directory = &fakeDirectory{err: errors.New("directory unavailable")}

	cart, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   TopicCartCreate,
		Shop:    "demo.myshopify.com",
		Payload: []byte(`{"id": 14, "customer": {"email": "a@x.com"}}`),
	})
	if err != nil {
		t.Fatalf("directory failure must not abort the upsert: %v", err)
	}
	if !cart.IsGuest {
		t.Fatalf("expected guest degradation on lookup failure")
	}
}

func TestIngestHandler_PublishFailureIsSwallowed(t *testing.T) {
	store := newMemCartStore()
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	handler.Publisher = &fakePublisher{err: errors.New("broker down")}

	if _, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   TopicCartCreate,
		Shop:    "demo.myshopify.com",
		Payload: []byte(`{"id": 15}`),
	}); err != nil {
		t.Fatalf("publish failure must not abort the upsert: %v", err)
	}
	if len(store.carts) != 1 {
		t.Fatalf("expected the cart to be stored despite publish failure")
	}
}

func TestIngestHandler_PublishCarriesRelayShape(t *testing.T) {
	store := newMemCartStore()
	publisher := &fakePublisher{}
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	handler.Publisher = publisher

	if _, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   TopicCartCreate,
		Shop:    "demo.myshopify.com",
		Payload: []byte(`{"id": 16, "customer": {"email": "b@x.com"}}`),
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.ID != "16" || event.Shop != "demo.myshopify.com" {
		t.Fatalf("unexpected event identity: %+v", event)
	}
	if event.Status != CartStatusPending {
		t.Fatalf("expected PENDING event status, got %s", event.Status)
	}
	if event.CustomerEmail == nil || *event.CustomerEmail != "b@x.com" {
		t.Fatalf("expected customer email on event, got %+v", event.CustomerEmail)
	}
}

func TestIngestHandler_RejectsUnsupportedTopicAndBadPayload(t *testing.T) {
	store := newMemCartStore()
	handler, err := NewIngestHandler(store)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}

	if _, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   "orders/create",
		Shop:    "demo.myshopify.com",
		Payload: []byte(`{"id": 1}`),
	}); err == nil {
		t.Fatalf("expected unsupported topic rejection")
	}

	if _, err := handler.Handle(context.Background(), InboundEvent{
		Topic:   TopicCartCreate,
		Shop:    "demo.myshopify.com",
		Payload: []byte(`not-json`),
	}); err == nil {
		t.Fatalf("expected malformed payload rejection")
	}
	if len(store.carts) != 0 {
		t.Fatalf("rejections must not mutate state")
	}
}
