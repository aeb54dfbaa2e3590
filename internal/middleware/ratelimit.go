package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit creates rate limiting middleware.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			// Rate limit by tenant ID if authenticated, otherwise by IP
			tenantID := GetTenantID(r.Context())
			if tenantID != "" {
				return "tenant:" + tenantID, nil
			}
			return ipKey(r)
		}),
		httprate.WithLimitHandler(limitHandler(windowLength)),
	)
}

// UserRateLimit creates per-user rate limiting middleware.
func UserRateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			userID := GetUserID(r.Context())
			if userID != "" {
				return "user:" + GetTenantID(r.Context()) + "/" + userID, nil
			}
			return ipKey(r)
		}),
		httprate.WithLimitHandler(limitHandler(windowLength)),
	)
}

func ipKey(r *http.Request) (string, error) {
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}

func limitHandler(windowLength time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(windowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", retryAfter)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded","code":"rate_limited","retry_after":` + retryAfter + `}`))
	}
}
