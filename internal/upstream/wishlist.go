package upstream

import (
	"context"
	"fmt"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

type wishlistResponse struct {
	Items []domain.Product `json:"items"`
}

func (c *Client) FetchWishlist(ctx context.Context, bearer string) ([]domain.Product, error) {
	var resp wishlistResponse
	if err := c.get(ctx, "/wishlist", requestOptions{bearer: bearer}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AddToWishlist(ctx context.Context, bearer, productID string) ([]domain.Product, error) {
	var resp wishlistResponse
	path := fmt.Sprintf("/wishlist/%s", productID)
	if err := c.mutate(ctx, "POST", path, requestOptions{bearer: bearer}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) RemoveFromWishlist(ctx context.Context, bearer, productID string) ([]domain.Product, error) {
	var resp wishlistResponse
	path := fmt.Sprintf("/wishlist/%s", productID)
	if err := c.mutate(ctx, "DELETE", path, requestOptions{bearer: bearer}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) ClearWishlist(ctx context.Context, bearer string) error {
	return c.mutate(ctx, "DELETE", "/wishlist", requestOptions{bearer: bearer}, nil, nil)
}
