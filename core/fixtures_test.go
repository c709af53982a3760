package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// memCartStore mirrors the SQL store's conditional-update semantics so the
// domain tests exercise the same race behavior the real store exhibits.
type memCartStore struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: map[string]*Cart{}}
}

func cartKey(shop, id string) string {
	return strings.TrimSpace(shop) + "/" + strings.TrimSpace(id)
}

func (s *memCartStore) Upsert(_ context.Context, in UpsertCartInput) (Cart, error) {
	if err := in.Validate(); err != nil {
		return Cart{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cartKey(in.Shop, in.ID)
	if existing, ok := s.carts[key]; ok {
		existing.CustomerEmail = in.CustomerEmail
		existing.IsGuest = in.IsGuest
		if token := strings.TrimSpace(in.RecoveryToken); token != "" {
			existing.RecoveryToken = token
		}
		if title := strings.TrimSpace(in.FirstItemTitle); title != "" {
			existing.FirstItemTitle = title
		}
		existing.UpdatedAt = in.ObservedAt
		return *existing, nil
	}
	cart := &Cart{
		ID:             strings.TrimSpace(in.ID),
		Shop:           strings.TrimSpace(in.Shop),
		CustomerEmail:  in.CustomerEmail,
		IsGuest:        in.IsGuest,
		Status:         CartStatusPending,
		RecoveryToken:  strings.TrimSpace(in.RecoveryToken),
		FirstItemTitle: strings.TrimSpace(in.FirstItemTitle),
		CreatedAt:      in.ObservedAt,
		UpdatedAt:      in.ObservedAt,
	}
	s.carts[key] = cart
	return *cart, nil
}

func (s *memCartStore) Get(_ context.Context, shop, id string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[cartKey(shop, id)]
	if !ok {
		return Cart{}, fmt.Errorf("cart %s/%s not found", shop, id)
	}
	return *cart, nil
}

func (s *memCartStore) ListNotifiable(_ context.Context, cutoff time.Time, limit int) ([]Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Cart
	for _, cart := range s.carts {
		if cart.Status != CartStatusPending || cart.EmailSentAt != nil {
			continue
		}
		if cart.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, *cart)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memCartStore) MarkConverted(_ context.Context, shop, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[cartKey(shop, id)]
	if !ok || cart.Status != CartStatusPending {
		return false, nil
	}
	cart.Status = CartStatusConverted
	return true, nil
}

func (s *memCartStore) MarkNotified(_ context.Context, shop, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[cartKey(shop, id)]
	if !ok || cart.Status != CartStatusPending || cart.EmailSentAt != nil {
		return false, nil
	}
	sent := at
	cart.EmailSentAt = &sent
	cart.Status = CartStatusAbandoned
	return true, nil
}

type memClaims struct {
	mu     sync.Mutex
	states map[string]string // sending | sent | failed
}

func newMemClaims() *memClaims {
	return &memClaims{states: map[string]string{}}
}

func (c *memClaims) Claim(_ context.Context, shop, cartID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cartKey(shop, cartID)
	switch c.states[key] {
	case "", "failed":
		c.states[key] = "sending"
		return true, nil
	}
	return false, nil
}

func (c *memClaims) MarkSent(_ context.Context, shop, cartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[cartKey(shop, cartID)] = "sent"
	return nil
}

func (c *memClaims) Release(_ context.Context, shop, cartID string, _ error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[cartKey(shop, cartID)] = "failed"
	return nil
}

type scriptedChecker struct {
	mu        sync.Mutex
	converted map[string]bool
	err       error
	calls     int
}

func (c *scriptedChecker) Converted(_ context.Context, shop, token string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.converted[cartKey(shop, token)], nil
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []Notification
	fail  error
	calls int
}

func (s *recordingSender) Send(_ context.Context, msg Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeDirectory struct {
	profile CustomerProfile
	found   bool
	err     error
	calls   int
}

func (d *fakeDirectory) FindByEmail(_ context.Context, _ string, _ []string) (CustomerProfile, bool, error) {
	d.calls++
	if d.err != nil {
		return CustomerProfile{}, false, d.err
	}
	return d.profile, d.found, nil
}

type fakePublisher struct {
	events []CartEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event CartEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
