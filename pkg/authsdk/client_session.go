package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Login starts a cookie session. The password may be empty when the service
// runs in trust login mode. The session cookie lands in the client's jar.
func (c *SDKClient) Login(ctx context.Context, username, password string) error {
	data := url.Values{"username": {username}}
	if password != "" {
		data.Set("password", password)
	}

	resp, err := c.postForm(ctx, "/login", data)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusSeeOther)
}

// Profile calls GET /profile using the session cookie in the jar.
func (c *SDKClient) Profile(ctx context.Context) (*ProfileResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/profile", nil, nil)
	if err != nil {
		return nil, err
	}

	var profile ProfileResponse
	if err := decodeJSON(resp, &profile, http.StatusOK); err != nil {
		return nil, err
	}

	return &profile, nil
}

// Logout ends the cookie session and lets the service clear the cookie.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/logout", nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusSeeOther)
}
