package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	"github.com/Sam-arojo/Protrust/internal/utils"
)

// ValidateUUIDParam validates a UUID path parameter before the handler runs,
// so issuer-scoped lookups never hit the database with junk IDs.
func ValidateUUIDParam(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		paramValue := c.Param(paramName)
		if paramValue == "" {
			basichttp.Fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "missing "+paramName)
			c.Abort()
			return
		}

		normalized, err := utils.NormalizeUUID(paramValue)
		if err != nil {
			basichttp.Fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "invalid "+paramName+" format")
			c.Abort()
			return
		}

		// Replace the param with the normalized version
		for i := range c.Params {
			if c.Params[i].Key == paramName {
				c.Params[i].Value = normalized
			}
		}

		c.Next()
	}
}
