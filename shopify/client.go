// Package shopify talks to the platform Admin GraphQL API on behalf of the
// recheck pipeline: order lookups for conversion detection and customer
// directory lookups for email resolution.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-cart-recovery/core"
)

const (
	DefaultAPIVersion = "2025-07"

	headerAccessToken = "X-Shopify-Access-Token"

	defaultRequestTimeout = 10 * time.Second
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues Admin GraphQL requests with per-shop credentials. Endpoint
// is overridable so tests can point a shop at a local server.
type Client struct {
	HTTP       HTTPDoer
	Tokens     core.ShopTokenStore
	APIVersion string
	Endpoint   func(shop string) string
	Logger     core.Logger
}

func NewClient(tokens core.ShopTokenStore) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("shopify: shop token store is required")
	}
	return &Client{
		HTTP:       &http.Client{Timeout: defaultRequestTimeout},
		Tokens:     tokens,
		APIVersion: DefaultAPIVersion,
		Logger:     glog.Nop(),
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Query runs one GraphQL operation against the shop's Admin API and decodes
// the data payload into out. Every failure is transient from the caller's
// point of view: the recheck pipeline retries on its next tick.
func (c *Client) Query(ctx context.Context, shop string, query string, variables map[string]any, out any) error {
	if c == nil || c.HTTP == nil || c.Tokens == nil {
		return fmt.Errorf("shopify: client is not configured")
	}
	shop = strings.TrimSpace(shop)
	if shop == "" {
		return fmt.Errorf("shopify: shop domain is required")
	}

	token, err := c.Tokens.AccessToken(ctx, shop)
	if err != nil {
		return core.UpstreamTransient(err, fmt.Sprintf("shopify: resolve access token for %s", shop))
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("shopify: encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shopify: build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAccessToken, token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return core.UpstreamTransient(err, fmt.Sprintf("shopify: admin api request for %s", shop))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return core.UpstreamTransient(
			fmt.Errorf("admin api returned status %d", resp.StatusCode),
			fmt.Sprintf("shopify: admin api request for %s", shop),
		)
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return core.UpstreamTransient(err, fmt.Sprintf("shopify: decode admin api response for %s", shop))
	}
	if len(envelope.Errors) > 0 {
		return core.UpstreamTransient(
			fmt.Errorf("graphql error: %s", envelope.Errors[0].Message),
			fmt.Sprintf("shopify: admin api query for %s", shop),
		)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return core.UpstreamTransient(err, fmt.Sprintf("shopify: decode graphql data for %s", shop))
		}
	}
	return nil
}

func (c *Client) endpoint(shop string) string {
	if c.Endpoint != nil {
		return c.Endpoint(shop)
	}
	version := strings.TrimSpace(c.APIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	endpoint := url.URL{
		Scheme: "https",
		Host:   shop,
		Path:   "/admin/api/" + version + "/graphql.json",
	}
	return endpoint.String()
}

func (c *Client) logger() core.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return glog.Nop()
}
