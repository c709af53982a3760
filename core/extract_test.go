package core

import (
	"testing"
)

func TestParseCartPayload_ExtractionOrder(t *testing.T) {
	body := []byte(`{
		"id": 1042,
		"token": "tok_abc",
		"email": "bare@example.com",
		"customer_email": "direct@example.com",
		"customer": {"email": "customer@example.com"},
		"line_items": [{"title": "Blue Kettle"}, {"title": "Mug"}]
	}`)

	payload, err := ParseCartPayload(body)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.CartID() != "1042" {
		t.Fatalf("expected cart id 1042, got %q", payload.CartID())
	}
	if payload.FirstItemTitle() != "Blue Kettle" {
		t.Fatalf("expected first item title Blue Kettle, got %q", payload.FirstItemTitle())
	}

	candidates := payload.EmailCandidates()
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %v", len(candidates), candidates)
	}
	if candidates[0] != "customer@example.com" {
		t.Fatalf("expected customer.email to win, got %q", candidates[0])
	}
	if candidates[1] != "direct@example.com" {
		t.Fatalf("expected customer_email second, got %q", candidates[1])
	}
}

func TestParseCartPayload_ToleratesLooseFields(t *testing.T) {
	body := []byte(`{
		"id": "77",
		"token": "tok_77",
		"note": "leave at the door",
		"attributes": [],
		"customer": null
	}`)

	payload, err := ParseCartPayload(body)
	if err != nil {
		t.Fatalf("parse payload with loose fields: %v", err)
	}
	if candidates := payload.EmailCandidates(); len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", candidates)
	}
}

func TestParseCartPayload_DeduplicatesCandidatesCaseInsensitively(t *testing.T) {
	body := []byte(`{
		"id": 9,
		"customer": {"email": "Shopper@Example.com"},
		"email": "shopper@example.com",
		"user_email": "other@example.com"
	}`)

	payload, err := ParseCartPayload(body)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	candidates := payload.EmailCandidates()
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %v", candidates)
	}
	if candidates[0] != "Shopper@Example.com" {
		t.Fatalf("expected original casing preserved, got %q", candidates[0])
	}
}

func TestParseCartPayload_RejectsMalformedBody(t *testing.T) {
	if _, err := ParseCartPayload([]byte(`{"id":`)); err == nil {
		t.Fatalf("expected malformed payload to be rejected")
	}
	if _, err := ParseCartPayload([]byte(`{"token":"t"}`)); err == nil {
		t.Fatalf("expected payload without id to be rejected")
	}
}
