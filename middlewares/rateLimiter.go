package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"shop-api/cache"
	"shop-api/logger"
)

// APIRateLimitMiddleware allows maxRequest requests per client IP and path in
// a fixed one-minute window, counted in Redis. Redis errors let the request
// through.
func APIRateLimitMiddleware(store *cache.RedisStore, maxRequest int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			endpoint := r.URL.Path
			key := "rate:" + ip + ":" + endpoint

			ctx := r.Context()

			count, err := store.Client.Incr(ctx, key).Result()
			if err != nil {
				// In case of error, let the request pass.
				logger.Warn.Printf("rate limiter unavailable: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			// If this is the first request, set an expiry of 1 minute.
			if count == 1 {
				store.Client.Expire(ctx, key, time.Minute)
			}

			remaining := maxRequest - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(maxRequest, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			// Retrieve the TTL for this key.
			ttl, err := store.Client.TTL(ctx, key).Result()
			if err == nil && ttl > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))
			} else {
				// Fallback if TTL is not available.
				w.Header().Set("X-RateLimit-Reset", "60")
			}

			if count > maxRequest {
				WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Try again later.", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
