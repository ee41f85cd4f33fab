package middleware

import (
	"net/http"
	"unicode"

	"github.com/gin-gonic/gin"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyKeyCtxKey = "idempotency_key"
	MaxIdempotencyKeyLen = 128
)

// IdempotencyKey validates the optional Idempotency-Key header and stores it
// on the context. Requests without the header pass through untouched.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if !validIdempotencyKey(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_IDEMPOTENCY_KEY",
					"message": "Idempotency-Key must be 1-128 printable ASCII characters",
				},
				"correlation_id": GetCorrelationID(c),
			})
			return
		}
		c.Set(idempotencyKeyCtxKey, key)
		c.Next()
	}
}

// GetIdempotencyKey returns the validated header value, or "".
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyCtxKey)
}

func validIdempotencyKey(key string) bool {
	if len(key) > MaxIdempotencyKeyLen {
		return false
	}
	for _, r := range key {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
