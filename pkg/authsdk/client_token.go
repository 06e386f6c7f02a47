package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Token exchanges a username and password for a bearer token.
func (c *SDKClient) Token(ctx context.Context, username, password string) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/token", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}

// ProfileWithToken calls GET /profile with the given bearer token.
func (c *SDKClient) ProfileWithToken(ctx context.Context, accessToken string) (*ProfileResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/profile", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var profile ProfileResponse
	if err := decodeJSON(resp, &profile, http.StatusOK); err != nil {
		return nil, err
	}

	return &profile, nil
}
