package upstream

import (
	"context"
	"fmt"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

func (c *Client) GetCustomer(ctx context.Context, bearer string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.get(ctx, "/account", requestOptions{bearer: bearer}, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, bearer string, req domain.UpdateCustomerRequest) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.mutate(ctx, "PATCH", "/account", requestOptions{bearer: bearer}, req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

func (c *Client) ListOrders(ctx context.Context, bearer string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var resp ordersResponse
	path := fmt.Sprintf("/account/orders?limit=%d&offset=%d", limit, offset)
	if err := c.get(ctx, path, requestOptions{bearer: bearer}, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}
