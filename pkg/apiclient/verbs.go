package apiclient

import (
	"context"
	"net/http"
)

// Get sends fields as a query string appended to endpoint; no body is sent.
func (c *Client) Get(ctx context.Context, endpoint string, fields Fields) (*Result, error) {
	return c.execute(ctx, appendQuery(endpoint, fields), nil, http.MethodGet)
}

// Post sends fields as the request body.
func (c *Client) Post(ctx context.Context, endpoint string, fields Fields) (*Result, error) {
	return c.execute(ctx, endpoint, fields, http.MethodPost)
}

// Put sends fields as the request body.
func (c *Client) Put(ctx context.Context, endpoint string, fields Fields) (*Result, error) {
	return c.execute(ctx, endpoint, fields, http.MethodPut)
}

// Patch sends fields as the request body.
func (c *Client) Patch(ctx context.Context, endpoint string, fields Fields) (*Result, error) {
	return c.execute(ctx, endpoint, fields, http.MethodPatch)
}

// Delete sends fields as the request body.
func (c *Client) Delete(ctx context.Context, endpoint string, fields Fields) (*Result, error) {
	return c.execute(ctx, endpoint, fields, http.MethodDelete)
}

// Do runs a request with an arbitrary method. GET behaves like Get; an empty
// method leaves the choice to the transport (GET, or POST when fields are given).
func (c *Client) Do(ctx context.Context, method, endpoint string, fields Fields) (*Result, error) {
	if method == http.MethodGet {
		return c.Get(ctx, endpoint, fields)
	}
	return c.execute(ctx, endpoint, fields, method)
}
