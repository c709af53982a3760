package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-cart-recovery/core"
)

const defaultMaxBodyBytes = 1 << 20

// EventHandler consumes a verified webhook envelope. core.IngestHandler is
// the production implementation.
type EventHandler interface {
	Handle(ctx context.Context, evt core.InboundEvent) (core.Cart, error)
}

// Handler is the HTTP entry point for platform webhook deliveries. It owns
// the transport concerns only: body capture, signature verification,
// delivery dedupe, and status mapping. Everything domain-shaped lives in
// the event handler.
type Handler struct {
	Verifier     Verifier
	Ledger       DeliveryLedger
	Events       EventHandler
	Logger       core.Logger
	MaxBodyBytes int64
}

func NewHandler(verifier Verifier, events EventHandler) (*Handler, error) {
	if verifier == nil {
		return nil, fmt.Errorf("webhooks: verifier is required")
	}
	if events == nil {
		return nil, fmt.Errorf("webhooks: event handler is required")
	}
	return &Handler{
		Verifier:     verifier,
		Events:       events,
		Logger:       glog.Nop(),
		MaxBodyBytes: defaultMaxBodyBytes,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResult(w, http.StatusMethodNotAllowed, false)
		return
	}

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		writeResult(w, http.StatusBadRequest, false)
		return
	}
	if int64(len(body)) > limit {
		writeResult(w, http.StatusRequestEntityTooLarge, false)
		return
	}

	req := InboundRequest{
		Shop:       strings.TrimSpace(r.Header.Get(HeaderShopDomain)),
		Topic:      strings.TrimSpace(r.Header.Get(HeaderTopic)),
		DeliveryID: strings.TrimSpace(r.Header.Get(HeaderDeliveryID)),
		Headers:    flattenHeaders(r.Header),
		Body:       body,
	}

	// Verification comes before any envelope validation so a forged request
	// learns nothing about what the endpoint considers well formed.
	if err := h.Verifier.Verify(r.Context(), req); err != nil {
		h.logger().Warn("webhook signature rejected",
			"shop", req.Shop,
			"topic", req.Topic,
			"error", err.Error(),
		)
		writeResult(w, http.StatusUnauthorized, false)
		return
	}

	// All three envelope headers are mandatory. Delivery id in particular
	// feeds the dedupe ledger, so a delivery without one never reaches the
	// event handler.
	if req.Shop == "" || req.Topic == "" || req.DeliveryID == "" {
		writeResult(w, http.StatusBadRequest, false)
		return
	}

	if status, done := h.reserve(r.Context(), req); done {
		writeResult(w, status, status < http.StatusBadRequest)
		return
	}

	_, err = h.Events.Handle(r.Context(), core.InboundEvent{
		Topic:      req.Topic,
		Shop:       req.Shop,
		DeliveryID: req.DeliveryID,
		Payload:    req.Body,
	})
	if err != nil {
		h.logger().Error("webhook processing failed",
			"shop", req.Shop,
			"topic", req.Topic,
			"delivery_id", req.DeliveryID,
			"error", err.Error(),
		)
		h.settle(r.Context(), req, err)
		writeResult(w, core.HTTPStatus(err), false)
		return
	}

	h.settle(r.Context(), req, nil)
	writeResult(w, http.StatusOK, true)
}

// reserve records the delivery in the ledger when one is configured. It
// returns done=true with a response status when the request should be
// answered without invoking the event handler.
func (h *Handler) reserve(ctx context.Context, req InboundRequest) (int, bool) {
	if h.Ledger == nil || req.DeliveryID == "" {
		return 0, false
	}
	record, seen, err := h.Ledger.Reserve(ctx, req.Shop, req.DeliveryID, req.Topic)
	if err != nil {
		h.logger().Error("webhook delivery ledger unavailable",
			"shop", req.Shop,
			"delivery_id", req.DeliveryID,
			"error", err.Error(),
		)
		return http.StatusInternalServerError, true
	}
	if seen && record.Status == DeliveryStatusProcessed {
		h.logger().Info("duplicate webhook delivery acknowledged",
			"shop", req.Shop,
			"delivery_id", req.DeliveryID,
		)
		return http.StatusOK, true
	}
	return 0, false
}

func (h *Handler) settle(ctx context.Context, req InboundRequest, cause error) {
	if h.Ledger == nil || req.DeliveryID == "" {
		return
	}
	var err error
	if cause == nil {
		err = h.Ledger.MarkProcessed(ctx, req.Shop, req.DeliveryID)
	} else {
		err = h.Ledger.MarkFailed(ctx, req.Shop, req.DeliveryID, cause)
	}
	if err != nil {
		h.logger().Warn("webhook delivery ledger update failed",
			"shop", req.Shop,
			"delivery_id", req.DeliveryID,
			"error", err.Error(),
		)
	}
}

func (h *Handler) logger() core.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return glog.Nop()
}

func writeResult(w http.ResponseWriter, status int, success bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": success})
}

func flattenHeaders(src http.Header) map[string]string {
	out := make(map[string]string, len(src))
	for key, values := range src {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}
