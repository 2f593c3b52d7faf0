package middlewares

import (
	"fmt"
	"net/http"

	"shop-api/logger"

	"github.com/getsentry/sentry-go"
)

// RecoverMiddleware turns a handler panic into a 500 response and reports it
// to the Sentry hub attached by sentryhttp, if any.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.RecoverWithContext(r.Context(), rec)
			} else {
				sentry.CaptureException(fmt.Errorf("panic: %v", rec))
			}
			WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
