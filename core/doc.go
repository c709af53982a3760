// Package core holds the cart-recovery domain: the Cart aggregate and its
// lifecycle invariants, the contracts every collaborator implements, the
// ingestion handler for platform webhook events, and the recheck service
// that decides between conversion and abandonment.
//
// The package is persistence and transport agnostic. Stores, the Shopify
// Admin API client, the mail dispatcher, and the broker relay are injected
// through the interfaces in contracts.go.
package core
