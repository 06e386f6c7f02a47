package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int

	// Detail is the "detail" field of the response body
	Detail string

	// Challenge is the WWW-Authenticate header, if any
	Challenge string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authgate: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Challenge:  resp.Header.Get("WWW-Authenticate"),
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
		apiErr.Detail = errResp.Detail
	} else {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
