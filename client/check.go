package client

import (
	"context"
	"net/http"
	"net/url"
)

// checkResponse is the payload of GET auth/check.
type checkResponse struct {
	Valid bool   `json:"valid"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// CheckAvailability asks whether value is still free for field
// ("username" or "email"). It satisfies availability.CheckFunc.
func (c *Client) CheckAvailability(ctx context.Context, field, value string) (bool, error) {
	q := url.Values{}
	q.Set("field", field)
	q.Set("value", value)

	raw, err := c.call(ctx, http.MethodGet, "/auth/check?"+q.Encode(), nil, false)
	if err != nil {
		return false, err
	}
	resp, err := decodeData[checkResponse](raw)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}
