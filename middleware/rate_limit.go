package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/utils"
)

// RateLimitByIP spends one token of the caller's bucket per request.
// Gin resolves ClientIP from X-Forwarded-For only for trusted proxies.
func RateLimitByIP(l *utils.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Allow(c.FullPath() + "|" + c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Too Many Requests",
				"retry_after": math.Ceil(wait.Seconds()),
			})
			return
		}
		c.Next()
	}
}
