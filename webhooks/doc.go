// Package webhooks receives platform cart events over HTTP: it verifies
// the HMAC signature against the untouched raw body, deduplicates
// deliveries through a durable ledger, and hands verified envelopes to the
// core ingestion handler.
package webhooks
