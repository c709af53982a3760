package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-cart-recovery/core"
)

const customerPageQuery = `query($first: Int!) {
  customers(first: $first) {
    edges {
      node {
        id
        email
        firstName
        lastName
        numberOfOrders
      }
    }
  }
}`

const defaultDirectoryPageSize = 50

// CustomerDirectory resolves payload email candidates against the shop's
// customer list. Matching is exact and case-insensitive over one bounded
// page; candidate order decides which address wins.
type CustomerDirectory struct {
	Client   *Client
	PageSize int
}

func NewCustomerDirectory(client *Client) (*CustomerDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("shopify: client is required")
	}
	return &CustomerDirectory{
		Client:   client,
		PageSize: defaultDirectoryPageSize,
	}, nil
}

func (d *CustomerDirectory) FindByEmail(
	ctx context.Context,
	shop string,
	candidates []string,
) (core.CustomerProfile, bool, error) {
	if d == nil || d.Client == nil {
		return core.CustomerProfile{}, false, fmt.Errorf("shopify: customer directory is not configured")
	}
	if len(candidates) == 0 {
		return core.CustomerProfile{}, false, nil
	}

	pageSize := d.PageSize
	if pageSize <= 0 {
		pageSize = defaultDirectoryPageSize
	}

	var data struct {
		Customers struct {
			Edges []struct {
				Node struct {
					ID             string `json:"id"`
					Email          string `json:"email"`
					FirstName      string `json:"firstName"`
					LastName       string `json:"lastName"`
					NumberOfOrders int    `json:"numberOfOrders,string"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"customers"`
	}
	err := d.Client.Query(ctx, shop, customerPageQuery, map[string]any{
		"first": pageSize,
	}, &data)
	if err != nil {
		return core.CustomerProfile{}, false, err
	}

	byEmail := make(map[string]core.CustomerProfile, len(data.Customers.Edges))
	for _, edge := range data.Customers.Edges {
		email := strings.ToLower(strings.TrimSpace(edge.Node.Email))
		if email == "" {
			continue
		}
		if _, exists := byEmail[email]; exists {
			continue
		}
		byEmail[email] = core.CustomerProfile{
			ID:         edge.Node.ID,
			Email:      strings.TrimSpace(edge.Node.Email),
			FirstName:  edge.Node.FirstName,
			LastName:   edge.Node.LastName,
			OrderCount: edge.Node.NumberOfOrders,
		}
	}

	for _, candidate := range candidates {
		normalized := strings.ToLower(strings.TrimSpace(candidate))
		if normalized == "" {
			continue
		}
		if profile, ok := byEmail[normalized]; ok {
			return profile, true, nil
		}
	}
	return core.CustomerProfile{}, false, nil
}

var _ core.CustomerDirectory = (*CustomerDirectory)(nil)
