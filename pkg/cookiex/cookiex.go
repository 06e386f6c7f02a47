// Package cookiex binds opaque values to HTTP cookies that are signed and,
// when a block key is supplied, encrypted with server-held keys.
package cookiex

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

var (
	// ErrNoCookie is returned when the request carries no cookie of the codec's name.
	ErrNoCookie = errors.New("cookiex: cookie not present")

	// ErrInvalid is returned when a cookie fails authentication, decryption
	// or its embedded timestamp check.
	ErrInvalid = errors.New("cookiex: invalid cookie")
)

// Options configures cookie attributes.
type Options struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite

	// MaxAge bounds both the browser lifetime and the signed timestamp.
	MaxAge time.Duration
}

// Codec writes, reads and clears a single named cookie.
type Codec struct {
	sc   *securecookie.SecureCookie
	opts Options
}

// New builds a Codec. hashKey authenticates the value (32 or 64 bytes
// recommended); blockKey, if non-nil, must be 16, 24 or 32 bytes and enables
// AES encryption.
func New(hashKey, blockKey []byte, opts Options) (*Codec, error) {
	if len(hashKey) < 32 {
		return nil, fmt.Errorf("cookiex: hash key must be at least 32 bytes, got %d", len(hashKey))
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("cookiex: block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	if opts.Name == "" {
		return nil, errors.New("cookiex: empty cookie name")
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.MaxAge <= 0 {
		return nil, errors.New("cookiex: max age must be positive")
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(opts.MaxAge.Seconds()))

	return &Codec{sc: sc, opts: opts}, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string { return c.opts.Name }

// Write encodes value and sets it on the response.
func (c *Codec) Write(w http.ResponseWriter, value string) error {
	encoded, err := c.sc.Encode(c.opts.Name, value)
	if err != nil {
		return fmt.Errorf("cookiex: encode: %w", err)
	}
	http.SetCookie(w, c.cookie(encoded, int(c.opts.MaxAge.Seconds())))
	return nil
}

// Read returns the decoded value of the request's cookie. A forged or
// altered cookie yields ErrInvalid.
func (c *Codec) Read(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.opts.Name)
	if err != nil || ck.Value == "" {
		return "", ErrNoCookie
	}

	var value string
	if err := c.sc.Decode(c.opts.Name, ck.Value, &value); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return value, nil
}

// Clear expires the cookie on the client.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *Codec) cookie(value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.opts.Name,
		Value:    value,
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		MaxAge:   maxAge,
		Secure:   c.opts.Secure,
		HttpOnly: true,
		SameSite: c.opts.SameSite,
	}
	if maxAge < 0 {
		ck.Expires = time.Unix(0, 0)
	}
	return ck
}
