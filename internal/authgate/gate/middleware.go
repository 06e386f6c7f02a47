package gate

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/authgate/pkg/slogx"
)

// Require runs g before next. Rejections are logged with their internal
// reason and written to the client; on success the principal is available
// to next through FromContext.
func Require(g Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := g.Authenticate(r)
			if err != nil {
				rej := AsRejection(err)
				l := slogx.FromContext(r.Context())
				attrs := []any{
					slog.String("kind", rej.Kind.String()),
					slog.Int("status", rej.Status),
					slog.String("reason", rej.Reason),
				}
				if rej.Err != nil {
					attrs = append(attrs, slog.Any("error", rej.Err))
				}
				if rej.Kind == KindInternal {
					l.Error("authentication failed", attrs...)
				} else {
					l.Warn("authentication rejected", attrs...)
				}
				rej.WriteError(w)
				return
			}

			ctx := withPrincipal(r.Context(), p)
			ctx = slogx.With(ctx, "username", p.Username(), "auth_method", string(p.Method()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
