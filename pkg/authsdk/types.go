package authsdk

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Detail is a human-readable reason, e.g. "Token expired"
	Detail string `json:"detail"`
}

// MessageResponse is returned by GET / and GET /protected-route.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse is returned from POST /token.
type TokenResponse struct {
	// AccessToken is the HS256 JWT to send as "Authorization: Bearer <token>"
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`
}

// ProfileResponse is returned from GET /profile.
type ProfileResponse struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`

	// AuthMethod is "bearer" or "session"
	AuthMethod string `json:"auth_method"`
}

// StatusResponse is returned from GET /health.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is returned from the /livez and /readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	UserStore    string `json:"user_store"`
	SessionStore string `json:"session_store"`
}
