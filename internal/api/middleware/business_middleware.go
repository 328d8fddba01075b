package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	BusinessHeader   = "X-Business-ID"
	businessIDKey    = "business_id"
	businessQueryKey = "business_id"
)

// BusinessContextMiddleware extracts the business ID from the header and sets
// it in context. Websocket clients cannot set headers, so the query parameter
// is accepted as well.
func BusinessContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessID := c.GetHeader(BusinessHeader)
		if businessID == "" {
			businessID = c.Query(businessQueryKey)
		}
		if businessID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Business-ID header is required"})
			c.Abort()
			return
		}

		// Validate UUID format
		if _, err := uuid.Parse(businessID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business ID format"})
			c.Abort()
			return
		}

		c.Set(businessIDKey, businessID)
		c.Next()
	}
}

// GetBusinessID returns the business set by BusinessContextMiddleware.
func GetBusinessID(c *gin.Context) (string, bool) {
	id := c.GetString(businessIDKey)
	return id, id != ""
}
