package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"loadhub-core-svc/src/internal/metrics"
	"loadhub-core-svc/src/internal/ratelimit"
	"loadhub-core-svc/src/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimit rejects requests over the limiter's window with 429 and Retry-After.
// The identity is gin's ClientIP, which only reads forwarding headers from the
// engine's trusted proxies. When the backend fails the request is admitted.
func RateLimit(limiter ratelimit.Limiter, recorder metrics.Recorder) gin.HandlerFunc {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	rule := limiter.Rule()

	return func(c *gin.Context) {
		identity := c.ClientIP()

		result, err := limiter.Allow(c.Request.Context(), identity)
		if err != nil {
			logrus.WithError(err).WithField("limiter", rule.Name).Warn("Rate limiter unavailable, admitting request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			recorder.RecordRateLimited(rule.Name)
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))

			logrus.WithFields(logrus.Fields{
				"limiter":   rule.Name,
				"client_ip": identity,
			}).Warn("Rate limit exceeded")

			message := rule.Message
			if message == "" {
				message = "Too many requests, please try again later"
			}
			response.Abort(c, http.StatusTooManyRequests, response.CodeRateLimited, "Too many requests", message)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
