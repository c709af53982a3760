package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-cart-recovery/core"
)

const orderByCartTokenQuery = `query($q: String!) {
  orders(first: 1, query: $q) {
    edges {
      node {
        id
      }
    }
  }
}`

// OrderChecker answers whether a cart's checkout completed by searching the
// order index for the cart token. Any upstream failure surfaces as an error
// so the caller treats the check as inconclusive.
type OrderChecker struct {
	Client *Client
}

func NewOrderChecker(client *Client) (*OrderChecker, error) {
	if client == nil {
		return nil, fmt.Errorf("shopify: client is required")
	}
	return &OrderChecker{Client: client}, nil
}

func (c *OrderChecker) Converted(ctx context.Context, shop string, recoveryToken string) (bool, error) {
	if c == nil || c.Client == nil {
		return false, fmt.Errorf("shopify: order checker is not configured")
	}
	token := strings.TrimSpace(recoveryToken)
	if token == "" {
		// No token means no checkout was ever started for this cart, so no
		// order can reference it.
		return false, nil
	}

	var data struct {
		Orders struct {
			Edges []struct {
				Node struct {
					ID string `json:"id"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	}
	err := c.Client.Query(ctx, shop, orderByCartTokenQuery, map[string]any{
		"q": "cart_token:" + token,
	}, &data)
	if err != nil {
		return false, err
	}

	converted := len(data.Orders.Edges) > 0
	if converted {
		c.Client.logger().Debug("order found for cart token",
			"shop", shop,
			"order_id", data.Orders.Edges[0].Node.ID,
		)
	}
	return converted, nil
}

var _ core.ConversionChecker = (*OrderChecker)(nil)
