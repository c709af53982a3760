package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	TopicCartCreate = "carts/create"
	TopicCartUpdate = "carts/update"
)

// InboundEvent is a verified webhook envelope: the signature check already
// passed and Payload holds the untouched raw body bytes.
type InboundEvent struct {
	Topic      string
	Shop       string
	DeliveryID string
	Payload    []byte
}

// IngestHandler turns cart lifecycle events into durable cart state.
// Directory and Publisher are optional enrichment; their failures are logged
// and swallowed because durability of cart state outranks enrichment.
type IngestHandler struct {
	Carts     CartStore
	Directory CustomerDirectory
	Publisher CartEventPublisher
	Logger    Logger
	Now       func() time.Time
}

func NewIngestHandler(carts CartStore) (*IngestHandler, error) {
	if carts == nil {
		return nil, fmt.Errorf("core: cart store is required")
	}
	return &IngestHandler{
		Carts:  carts,
		Logger: glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func SupportedTopic(topic string) bool {
	switch strings.TrimSpace(topic) {
	case TopicCartCreate, TopicCartUpdate:
		return true
	}
	return false
}

// Handle performs at most one durable upsert and at most one publish.
func (h *IngestHandler) Handle(ctx context.Context, evt InboundEvent) (Cart, error) {
	if h == nil || h.Carts == nil {
		return Cart{}, fmt.Errorf("core: ingest handler requires a cart store")
	}
	topic := strings.TrimSpace(evt.Topic)
	if !SupportedTopic(topic) {
		return Cart{}, ValidationFailure(fmt.Sprintf("core: unsupported webhook topic %q", topic))
	}
	shop := strings.TrimSpace(evt.Shop)
	if shop == "" {
		return Cart{}, ValidationFailure("core: shop domain is required")
	}

	payload, err := ParseCartPayload(evt.Payload)
	if err != nil {
		return Cart{}, err
	}

	email := h.resolveEmail(ctx, shop, payload)
	cart, err := h.Carts.Upsert(ctx, UpsertCartInput{
		ID:             payload.CartID(),
		Shop:           shop,
		CustomerEmail:  email,
		IsGuest:        email == "",
		RecoveryToken:  strings.TrimSpace(payload.Token),
		FirstItemTitle: payload.FirstItemTitle(),
		ObservedAt:     h.now(),
	})
	if err != nil {
		return Cart{}, PersistenceFailure(err, "core: upsert cart state")
	}

	h.logger().Info("cart ingested",
		"topic", topic,
		"shop", shop,
		"cart_id", cart.ID,
		"is_guest", cart.IsGuest,
	)

	h.publish(ctx, cart)
	return cart, nil
}

// resolveEmail applies the extraction rules and, when a directory is wired,
// requires an exact case-insensitive directory match. No match or a lookup
// failure degrades to guest treatment.
func (h *IngestHandler) resolveEmail(ctx context.Context, shop string, payload CartPayload) string {
	candidates := payload.EmailCandidates()
	if len(candidates) == 0 {
		return ""
	}
	if h.Directory == nil {
		return candidates[0]
	}
	profile, found, err := h.Directory.FindByEmail(ctx, shop, candidates)
	if err != nil {
		h.logger().Warn("customer directory lookup failed, treating cart as guest",
			"shop", shop,
			"error", err.Error(),
		)
		return ""
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(profile.Email)
}

func (h *IngestHandler) publish(ctx context.Context, cart Cart) {
	if h.Publisher == nil {
		return
	}
	event := CartEvent{
		ID:        cart.ID,
		Shop:      cart.Shop,
		IsGuest:   cart.IsGuest,
		CreatedAt: cart.CreatedAt,
		Status:    cart.Status,
	}
	if !cart.IsGuest {
		email := cart.CustomerEmail
		event.CustomerEmail = &email
	}
	if err := h.Publisher.Publish(ctx, event); err != nil {
		h.logger().Warn("cart event publish failed",
			"shop", cart.Shop,
			"cart_id", cart.ID,
			"error", err.Error(),
		)
	}
}

func (h *IngestHandler) logger() Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return glog.Nop()
}

func (h *IngestHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
