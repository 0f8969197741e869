package middleware

import (
	"crypto/subtle"
	"net/http"

	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"
)

// CallbackTokenHeader carries the shared secret on payment gateway callbacks.
const CallbackTokenHeader = "X-Callback-Token"

// CallbackToken rejects requests whose callback token does not match secret.
// An empty secret disables the endpoint entirely.
func CallbackToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(CallbackTokenHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.WithContext(r.Context()).Warn().
					Str("path", r.URL.Path).
					Bool("configured", secret != "").
					Msg("payment callback rejected")
				utils.WriteError(w, http.StatusUnauthorized, "invalid callback token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
