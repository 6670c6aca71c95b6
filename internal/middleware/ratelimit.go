package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admission-api/internal/models"
	"github.com/noah-isme/uni-admission-api/internal/service"
	appErrors "github.com/noah-isme/uni-admission-api/pkg/errors"
	"github.com/noah-isme/uni-admission-api/pkg/response"
)

type rateCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit applies a fixed-window limit to a route. The window counter lives
// in Redis so the limit holds across instances; when Redis is unavailable the
// request is let through rather than failing the route.
func RateLimit(counter rateCounter, metrics *service.MetricsService, logger *zap.Logger, route string, limit int64, window time.Duration) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		client := c.ClientIP()
		if claimsValue, ok := c.Get(ContextUserKey); ok {
			if claims, ok := claimsValue.(*models.JWTClaims); ok {
				client = claims.UserID
			}
		}

		key := fmt.Sprintf("ratelimit:%s:%s", route, client)
		count, err := counter.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("rate limit counter failed", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		if count > limit {
			metrics.RecordRateLimited(route)
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
