package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-cart-recovery/core"
)

const (
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderDeliveryID = "X-Shopify-Webhook-Id"
	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
)

// InboundRequest is the raw delivery as received: Body holds the exact
// bytes the platform signed. Any re-serialization before verification
// invalidates the signature.
type InboundRequest struct {
	Shop       string
	Topic      string
	DeliveryID string
	Headers    map[string]string
	Body       []byte
}

type Verifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

// HeaderHMACVerifier checks a keyed SHA-256 digest carried in a header,
// compared in constant time against the digest of the raw body.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req InboundRequest) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return core.AuthenticationFailure(
			fmt.Sprintf("webhooks: %s signature header is required", strings.TrimSpace(v.Header)),
		)
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.AuthenticationFailure("webhooks: signature secret is not configured")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return core.AuthenticationFailure("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "hex":
		decoded, err = hex.DecodeString(signature)
	default:
		decoded, err = base64.StdEncoding.DecodeString(signature)
	}
	if err != nil {
		return core.AuthenticationFailure("webhooks: malformed signature encoding")
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return core.AuthenticationFailure("webhooks: signature verification failed")
	}
	return nil
}

// NewShopifyVerifier verifies the base64 HMAC-SHA256 signature Shopify
// sends on every webhook delivery.
func NewShopifyVerifier(secret string) HeaderHMACVerifier {
	return HeaderHMACVerifier{
		Header:   HeaderHMAC,
		Secret:   strings.TrimSpace(secret),
		Encoding: "base64",
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
