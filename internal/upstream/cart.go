package upstream

import (
	"context"
	"fmt"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

// CartTokens carries both identities a cart call may need. CartToken
// selects the cart; Bearer (optional) lets the backend merge guest carts
// into the account.
type CartTokens struct {
	CartToken string
	Bearer    string
}

func (t CartTokens) options() requestOptions {
	return requestOptions{bearer: t.Bearer, cartToken: t.CartToken}
}

// FetchCart returns the current cart snapshot. On a first call without a
// cart token the backend issues one inside the snapshot.
func (c *Client) FetchCart(ctx context.Context, tokens CartTokens) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.get(ctx, "/cart", tokens.options(), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) UpdateQuantity(ctx context.Context, tokens CartTokens, productID string, quantity int) (*domain.Cart, error) {
	var cart domain.Cart
	path := fmt.Sprintf("/cart/items/%s", productID)
	if err := c.mutate(ctx, "PATCH", path, tokens.options(), updateQuantityRequest{Quantity: quantity}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) RemoveItem(ctx context.Context, tokens CartTokens, productID string) (*domain.Cart, error) {
	var cart domain.Cart
	path := fmt.Sprintf("/cart/items/%s", productID)
	if err := c.mutate(ctx, "DELETE", path, tokens.options(), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (c *Client) ApplyCoupon(ctx context.Context, tokens CartTokens, code string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.mutate(ctx, "POST", "/cart/coupon", tokens.options(), applyCouponRequest{Code: code}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) RemoveCoupon(ctx context.Context, tokens CartTokens) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.mutate(ctx, "DELETE", "/cart/coupon", tokens.options(), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
