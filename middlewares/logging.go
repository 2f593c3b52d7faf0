package middlewares

import (
	"net"
	"net/http"
	"strings"
	"time"

	"shop-api/logger"
)

// LoggingMiddleware logs audit information for every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamp := time.Now().Format(time.RFC3339)
		method := r.Method
		url := r.URL.String()
		userAgent := r.UserAgent()
		ip := ClientIP(r)

		// Log as an audit log entry
		logger.Audit.Printf("Time: %s | Method: %s | URL: %s | User-Agent: %s | IP: %s", timestamp, method, url, userAgent, ip)

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address
// without its port.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header for proxies
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	// Fallback to RemoteAddr (trim port)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
