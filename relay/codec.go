package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-cart-recovery/core"
)

// EncodeEvent renders the wire payload and its partition key. Keying by
// cart id keeps every event for one cart on one partition, so consumers
// observe per-cart order.
func EncodeEvent(event core.CartEvent) (key []byte, value []byte, err error) {
	id := strings.TrimSpace(event.ID)
	if id == "" {
		return nil, nil, fmt.Errorf("relay: cart event id is required")
	}
	value, err = json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("relay: encode cart event: %w", err)
	}
	return []byte(id), value, nil
}

func DecodeEvent(value []byte) (core.CartEvent, error) {
	var event core.CartEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return core.CartEvent{}, fmt.Errorf("relay: decode cart event: %w", err)
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Shop) == "" {
		return core.CartEvent{}, fmt.Errorf("relay: cart event is missing id or shop")
	}
	return event, nil
}
