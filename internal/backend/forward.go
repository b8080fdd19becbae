package backend

import (
	"bytes"
	"context"
	"io"
	"net/url"
)

type ForwardRequest struct {
	Op     string
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// Token is the caller's bearer token, passed through unchanged.
	Token string
}

type ForwardResponse struct {
	Status int
	Body   []byte
}

func (r ForwardResponse) OK() bool { return r.Status >= 200 && r.Status <= 299 }

// Forward relays a request to the backend as-is and returns the raw
// response. Only a failure to reach the backend is returned as an error.
func (c *Client) Forward(ctx context.Context, req ForwardRequest) (ForwardResponse, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	op := req.Op
	if op == "" {
		op = "forward"
	}
	status, raw, err := c.roundTrip(ctx, op, req.Method, c.resolve(req.Path, req.Query), req.Token, body)
	if err != nil {
		return ForwardResponse{}, err
	}
	return ForwardResponse{Status: status, Body: raw}, nil
}
