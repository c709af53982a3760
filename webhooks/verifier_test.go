package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func signBase64(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHeaderHMACVerifier_AcceptsValidSignature(t *testing.T) {
	body := []byte(`{"id":1001,"token":"tok_1"}`)
	verifier := NewShopifyVerifier("topsecret")

	req := InboundRequest{
		Headers: map[string]string{HeaderHMAC: signBase64("topsecret", body)},
		Body:    body,
	}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected valid signature to verify: %v", err)
	}
}

func TestHeaderHMACVerifier_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"id":1001}`)
	verifier := NewShopifyVerifier("topsecret")

	req := InboundRequest{
		Headers: map[string]string{HeaderHMAC: signBase64("topsecret", body)},
		Body:    []byte(`{"id":9999}`),
	}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatalf("expected tampered body to fail verification")
	}
}

func TestHeaderHMACVerifier_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":1001}`)
	verifier := NewShopifyVerifier("topsecret")

	req := InboundRequest{
		Headers: map[string]string{HeaderHMAC: signBase64("other", body)},
		Body:    body,
	}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatalf("expected wrong secret to fail verification")
	}
}

func TestHeaderHMACVerifier_MissingHeader(t *testing.T) {
	verifier := NewShopifyVerifier("topsecret")
	req := InboundRequest{Body: []byte(`{}`)}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatalf("expected missing signature header to fail")
	}
}

func TestHeaderHMACVerifier_MalformedEncoding(t *testing.T) {
	verifier := NewShopifyVerifier("topsecret")
	req := InboundRequest{
		Headers: map[string]string{HeaderHMAC: "not-base64!!"},
		Body:    []byte(`{}`),
	}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatalf("expected malformed signature to fail")
	}
}

func TestHeaderHMACVerifier_HexEncodingVariant(t *testing.T) {
	body := []byte(`{"id":7}`)
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(body)

	verifier := HeaderHMACVerifier{
		Header:   "X-Signature",
		Prefix:   "sha256=",
		Secret:   "topsecret",
		Encoding: "hex",
	}
	req := InboundRequest{
		Headers: map[string]string{"X-Signature": "sha256=" + hex.EncodeToString(mac.Sum(nil))},
		Body:    body,
	}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected hex variant to verify: %v", err)
	}
}
