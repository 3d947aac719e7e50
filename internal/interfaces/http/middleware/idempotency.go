package middleware

import (
	"net/http"
	"time"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client's request key
const IdempotencyKeyHeader = "Idempotency-Key"

// DefaultIdempotencyTTL is how long a key stays claimed
const DefaultIdempotencyTTL = 24 * time.Hour

const maxIdempotencyKeySize = 200

// Idempotency claims the Idempotency-Key header of a write request for ttl.
// A replayed key is answered with 409 ERR_DUPLICATE_REQUEST; a request that
// fails releases its key so the client may retry. Requests without the header
// pass through. When the store is unreachable the request proceeds unguarded.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeySize {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		scoped := scopeKey(c, key)
		claimed, err := store.MarkProcessed(ctx, scoped, ttl)
		if err != nil {
			logger.L(ctx).Warn("Idempotency store unavailable, request not guarded", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest, "request with this Idempotency-Key was already processed", GetRequestID(c)))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(ctx, scoped); err != nil {
				logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}

// scopeKey keeps keys of different users and endpoints apart
func scopeKey(c *gin.Context, key string) string {
	user := c.GetString(JWTUserIDKey)
	if user == "" {
		user = "anonymous"
	}
	return "receivables:" + user + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}
