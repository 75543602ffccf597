package upstream

import (
	"context"
	"fmt"

	"github.com/google/go-querystring/query"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

// ListProductsOptions encode straight into the catalog query string.
type ListProductsOptions struct {
	Page     int    `url:"page,omitempty"`
	PerPage  int    `url:"per_page,omitempty"`
	Sort     string `url:"sort,omitempty"`
	Category string `url:"category,omitempty"`
	Search   string `url:"search,omitempty"`
	Currency string `url:"currency,omitempty"`
}

func (c *Client) ListProducts(ctx context.Context, opts ListProductsOptions) (*domain.ProductPage, error) {
	values, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog query: %w", err)
	}

	var page domain.ProductPage
	if err := c.get(ctx, "/products", requestOptions{query: values}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, slug, currency string) (*domain.Product, error) {
	values, err := query.Values(struct {
		Currency string `url:"currency,omitempty"`
	}{Currency: currency})
	if err != nil {
		return nil, fmt.Errorf("failed to encode product query: %w", err)
	}

	var product domain.Product
	path := fmt.Sprintf("/products/%s", slug)
	if err := c.get(ctx, path, requestOptions{query: values}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetHomepage fetches the CMS component layout. Components with an
// unrecognized type are dropped so a new CMS block cannot break the page.
func (c *Client) GetHomepage(ctx context.Context) (*domain.Homepage, error) {
	var homepage domain.Homepage
	if err := c.get(ctx, "/homepage", requestOptions{}, &homepage); err != nil {
		return nil, err
	}

	known := homepage.Components[:0]
	for _, component := range homepage.Components {
		switch component.Type {
		case domain.ComponentHero, domain.ComponentProductList, domain.ComponentReviews, domain.ComponentFeatures:
			known = append(known, component)
		}
	}
	homepage.Components = known

	return &homepage, nil
}
