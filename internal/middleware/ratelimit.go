package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"stockroom/internal/metrics"
	"stockroom/internal/ratelimit"

	"go.uber.org/zap"
)

// RateLimitMiddleware throttles requests per caller. Authenticated callers are
// keyed by user id, anonymous ones by remote address. Limiter failures let the
// request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, scope string, m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.RemoteAddr
			if userID, ok := GetUserID(r.Context()); ok {
				clientID = userID.String()
			}

			decision, err := limiter.Allow(r.Context(), clientID)
			if err != nil {
				logger.Error("Failed to check rate limit",
					zap.Error(err),
					zap.String("scope", scope),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.String("scope", scope),
					zap.Int("limit", decision.Limit),
				)
				m.RateLimited(scope)

				retry := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.RetryAfter).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(retry))

				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
