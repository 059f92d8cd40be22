package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/transport"
	"github.com/frahmantamala/account-registry/pkg/logger"
)

// Credentials reads the claimed account ID and token from the request headers
// and stores them in the context. They are verified later by the services.
func Credentials(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, appErr := transport.ParseCredentials(r)
			if appErr != nil {
				base.WriteAppError(w, appErr)
				return
			}

			ctx := internal.ContextWithCredentials(r.Context(), creds)
			ctx = logger.With(ctx, "actor_id", strconv.FormatInt(creds.AccountID, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP records the caller address for the services. Run it after chi's
// RealIP so proxy headers are honoured.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(internal.ContextWithClientIP(r.Context(), ip)))
	})
}
