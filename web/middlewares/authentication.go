package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"autolog.dev/autolog/web/common"
)

// BearerKey rejects requests whose `Authorization: Bearer <key>` header does not
// carry key.
func BearerKey(key string) gin.HandlerFunc {
	expected := []byte(key)

	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewFailureResponse("Unauthorized"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewFailureResponse("Unauthorized"))
			return
		}

		c.Next()
	}
}
