package cookiex_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/authgate/pkg/cookiex"
	"github.com/stretchr/testify/require"
)

var (
	hashKey  = []byte("0123456789abcdef0123456789abcdef")
	blockKey = []byte("fedcba9876543210fedcba9876543210")
)

func newCodec(t *testing.T, hk, bk []byte) *cookiex.Codec {
	t.Helper()
	c, err := cookiex.New(hk, bk, cookiex.Options{
		Name:   "session_id",
		Secure: true,
		MaxAge: 12 * time.Hour,
	})
	require.NoError(t, err)
	return c
}

// roundTrip writes value with c and returns a request carrying the cookie.
func roundTrip(t *testing.T, c *cookiex.Codec, value string) (*http.Request, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, c.Write(rec, value))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return req, cookies[0]
}

func TestWriteAndRead(t *testing.T) {
	for name, bk := range map[string][]byte{"signed": nil, "signed and encrypted": blockKey} {
		t.Run(name, func(t *testing.T) {
			c := newCodec(t, hashKey, bk)

			req, ck := roundTrip(t, c, "raw-session-id")
			require.Equal(t, "session_id", ck.Name)
			require.NotContains(t, ck.Value, "raw-session-id")
			require.True(t, ck.HttpOnly)
			require.True(t, ck.Secure)
			require.Equal(t, http.SameSiteLaxMode, ck.SameSite)
			require.Equal(t, "/", ck.Path)
			require.Equal(t, int((12 * time.Hour).Seconds()), ck.MaxAge)

			got, err := c.Read(req)
			require.NoError(t, err)
			require.Equal(t, "raw-session-id", got)
		})
	}
}

func TestRead_Rejections(t *testing.T) {
	c := newCodec(t, hashKey, blockKey)

	t.Run("missing cookie", func(t *testing.T) {
		_, err := c.Read(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, cookiex.ErrNoCookie)
	})

	t.Run("forged raw value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "guessed-session-id"})
		_, err := c.Read(req)
		require.ErrorIs(t, err, cookiex.ErrInvalid)
	})

	t.Run("altered value", func(t *testing.T) {
		_, ck := roundTrip(t, c, "raw-session-id")
		b := []byte(ck.Value)
		if b[10] == 'A' {
			b[10] = 'B'
		} else {
			b[10] = 'A'
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: string(b)})
		_, err := c.Read(req)
		require.ErrorIs(t, err, cookiex.ErrInvalid)
	})

	t.Run("signed with another key", func(t *testing.T) {
		other := newCodec(t, []byte("another-hash-key-another-hash-key"), blockKey)
		req, _ := roundTrip(t, other, "raw-session-id")
		_, err := c.Read(req)
		require.ErrorIs(t, err, cookiex.ErrInvalid)
	})
}

func TestClear(t *testing.T) {
	c := newCodec(t, hashKey, nil)
	rec := httptest.NewRecorder()
	c.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session_id", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Equal(t, -1, cookies[0].MaxAge)
	require.True(t, cookies[0].HttpOnly)
}

func TestNew_Validation(t *testing.T) {
	opts := cookiex.Options{Name: "session_id", MaxAge: time.Hour}

	_, err := cookiex.New([]byte("short"), nil, opts)
	require.Error(t, err)

	_, err = cookiex.New(hashKey, []byte("bad-size"), opts)
	require.Error(t, err)

	_, err = cookiex.New(hashKey, nil, cookiex.Options{MaxAge: time.Hour})
	require.Error(t, err)

	_, err = cookiex.New(hashKey, nil, cookiex.Options{Name: "session_id"})
	require.Error(t, err)
}
