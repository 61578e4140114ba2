package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourism/backoffice/internal/interfaces/http/dto"
)

// CronSecretHeader carries the shared secret of maintenance endpoints
const CronSecretHeader = "X-Cron-Secret"

// IdempotencyKeyHeader is the optional idempotency key of create requests
const IdempotencyKeyHeader = "Idempotency-Key"

// SharedSecret rejects requests whose header does not carry secret.
// An empty secret refuses every request.
func SharedSecret(header, secret string) gin.HandlerFunc {
	// hashing first makes the comparison independent of the supplied length
	want := sha256.Sum256([]byte(secret))

	return func(c *gin.Context) {
		supplied := c.GetHeader(header)
		got := sha256.Sum256([]byte(supplied))
		if secret == "" || supplied == "" || subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"Missing or invalid "+header+" header",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}
