package core

import (
	"encoding/json"
	"strings"
)

// emailCarrier tolerates the platform's loosely shaped payload corners:
// fields like note and attributes arrive as an object, a bare string, an
// array, or null depending on the storefront. Only an object carrying an
// "email" string contributes a candidate.
type emailCarrier struct {
	Email string
}

func (c *emailCarrier) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var inner struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &inner); err != nil {
		return nil
	}
	c.Email = inner.Email
	return nil
}

type lineItem struct {
	Title string `json:"title"`
}

// CartPayload is the decoded webhook body for carts/create and carts/update
// events. Identity signals live in several historical locations; see
// emailRules for the extraction order.
type CartPayload struct {
	ID            json.Number  `json:"id"`
	Token         string       `json:"token"`
	Email         string       `json:"email"`
	CustomerEmail string       `json:"customer_email"`
	UserEmail     string       `json:"user_email"`
	Customer      emailCarrier `json:"customer"`
	User          emailCarrier `json:"user"`
	Attributes    emailCarrier `json:"attributes"`
	Note          emailCarrier `json:"note"`
	LineItems     []lineItem   `json:"line_items"`
}

func ParseCartPayload(body []byte) (CartPayload, error) {
	var payload CartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return CartPayload{}, ValidationFailure("core: malformed cart payload: " + err.Error())
	}
	if strings.TrimSpace(payload.ID.String()) == "" {
		return CartPayload{}, ValidationFailure("core: cart payload id is required")
	}
	return payload, nil
}

func (p CartPayload) CartID() string {
	return strings.TrimSpace(p.ID.String())
}

// FirstItemTitle is the human-readable cart summary used in the
// notification body.
func (p CartPayload) FirstItemTitle() string {
	if len(p.LineItems) == 0 {
		return ""
	}
	return strings.TrimSpace(p.LineItems[0].Title)
}

type emailRule struct {
	name  string
	value func(CartPayload) string
}

// emailRules is the fixed extraction priority for customer identity
// signals. Earlier rules win; the order is part of the ingestion contract
// and is not re-derived per handler.
var emailRules = []emailRule{
	{name: "customer.email", value: func(p CartPayload) string { return p.Customer.Email }},
	{name: "customer_email", value: func(p CartPayload) string { return p.CustomerEmail }},
	{name: "user.email", value: func(p CartPayload) string { return p.User.Email }},
	{name: "attributes.email", value: func(p CartPayload) string { return p.Attributes.Email }},
	{name: "note.email", value: func(p CartPayload) string { return p.Note.Email }},
	{name: "email", value: func(p CartPayload) string { return p.Email }},
	{name: "user_email", value: func(p CartPayload) string { return p.UserEmail }},
}

// EmailCandidates returns the non-empty identity signals in rule order,
// deduplicated case-insensitively.
func (p CartPayload) EmailCandidates() []string {
	var candidates []string
	seen := map[string]struct{}{}
	for _, rule := range emailRules {
		email := strings.TrimSpace(rule.value(p))
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, email)
	}
	return candidates
}
