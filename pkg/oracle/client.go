// Package oracle queries the remote query-cost evaluation service for the
// authoritative cost of a normalized query.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultAPIVersion = "2024-01"
	defaultAuthHeader = "X-Shopify-Access-Token"
)

// ErrCostMissing indicates the service responded successfully but carried
// neither cost field, so no authoritative cost can be extracted.
var ErrCostMissing = eris.New("oracle: response missing both cost fields")

// Client returns the authoritative cost of a query.
type Client interface {
	QueryCost(ctx context.Context, req CostRequest) (int, error)
}

// CostRequest is the request body for the versioned cost endpoint.
type CostRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type costResponse struct {
	Extensions struct {
		Cost struct {
			RequestedQueryCost *int `json:"requestedQueryCost"`
			ActualQueryCost    *int `json:"actualQueryCost"`
		} `json:"cost"`
	} `json:"extensions"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets the service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithAPIVersion overrides the default API version in the endpoint path.
func WithAPIVersion(version string) Option {
	return func(c *httpClient) {
		c.apiVersion = version
	}
}

// WithAuthHeader overrides the credential header name.
func WithAuthHeader(name string) Option {
	return func(c *httpClient) {
		c.authHeader = name
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token      string
	baseURL    string
	apiVersion string
	authHeader string
	http       *http.Client
}

// NewClient creates a cost oracle client. baseURL has no useful default; pass
// WithBaseURL with the tenant's endpoint.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:      token,
		apiVersion: defaultAPIVersion,
		authHeader: defaultAuthHeader,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// QueryCost submits one query and extracts the authoritative cost from the
// response extensions. The requested cost is the primary field; the actual
// cost is consulted only when the primary is absent, never combined with it.
func (c *httpClient) QueryCost(ctx context.Context, req CostRequest) (int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, eris.Wrap(err, "oracle: marshal request")
	}

	url := c.baseURL + "/admin/api/" + c.apiVersion + "/graphql.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, eris.Wrap(err, "oracle: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(c.authHeader, c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, eris.Wrap(err, "oracle: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "oracle: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("oracle: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result costResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, eris.Wrap(err, "oracle: unmarshal response")
	}

	cost := result.Extensions.Cost
	switch {
	case cost.RequestedQueryCost != nil:
		return *cost.RequestedQueryCost, nil
	case cost.ActualQueryCost != nil:
		return *cost.ActualQueryCost, nil
	default:
		return 0, ErrCostMissing
	}
}
