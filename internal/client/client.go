// Package client talks to the two upstream services the checkout widget
// depends on: the product catalog and the order service.
package client

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

	"github.com/fairyhunter13/storefront-checkout/internal/model"
)

// Catalog reads product records from the catalog service.
type Catalog struct {
	httpClient *http.Client
	baseURL    string
}

// Orders places orders against the order service.
type Orders struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient returns the client shared by Catalog and Orders. A zero
// timeout leaves requests unbounded.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewCatalog creates a Catalog rooted at baseURL. A nil httpClient means
// http.DefaultClient.
func NewCatalog(baseURL string, httpClient *http.Client) *Catalog {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Catalog{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewOrders creates an Orders client rooted at baseURL. A nil httpClient
// means http.DefaultClient.
func NewOrders(baseURL string, httpClient *http.Client) *Orders {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Orders{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetProduct fetches GET /products/{id}.
//
// The response status is not inspected: whatever body comes back is decoded,
// and callers decide whether the record is usable (for instance through
// Product.Price.Float).
func (c *Catalog) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	u := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return p, fmt.Errorf("failed to create product request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return p, fmt.Errorf("failed to call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("failed to decode product %q (status %d): %w", id, resp.StatusCode, err)
	}
	return p, nil
}

// Quote fetches the product and extracts its base price.
func (c *Catalog) Quote(ctx context.Context, id string) (model.Quote, error) {
	p, err := c.GetProduct(ctx, id)
	if err != nil {
		return model.Quote{}, err
	}
	price, err := p.Price.Float()
	if err != nil {
		return model.Quote{}, fmt.Errorf("product %q: %w", id, err)
	}
	return model.Quote{ProductID: id, BasePrice: price}, nil
}

// ListProducts fetches GET /products. Unlike GetProduct, a non-2xx status is
// an error.
func (c *Catalog) ListProducts(ctx context.Context) ([]model.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call catalog service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog service returned status %d: %s", resp.StatusCode, string(body))
	}
	var out []model.Product
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode product list: %w", err)
	}
	return out, nil
}

// Placed describes a completed order round trip. The body is drained but not
// interpreted.
type Placed struct {
	StatusCode int
}

// OK reports whether the order service answered with a 2xx status.
func (p Placed) OK() bool { return p.StatusCode >= 200 && p.StatusCode <= 299 }

// CreateOrder posts the order request to POST /orders. Only transport
// failures are errors; any HTTP response counts as a completed round trip.
func (c *Orders) CreateOrder(ctx context.Context, or model.OrderRequest) (Placed, error) {
	body, err := json.Marshal(or)
	if err != nil {
		return Placed{}, fmt.Errorf("failed to marshal order request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Placed{}, fmt.Errorf("failed to create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Placed{}, fmt.Errorf("failed to call order service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return Placed{StatusCode: resp.StatusCode}, nil
}
