package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// ProtectedRoute calls GET /protected-route with Basic credentials.
func (c *SDKClient) ProtectedRoute(ctx context.Context, username, password string) (*MessageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/protected-route"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(username, password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var msg MessageResponse
	if err := decodeJSON(resp, &msg, http.StatusOK); err != nil {
		return nil, err
	}

	return &msg, nil
}
