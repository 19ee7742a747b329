package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The authentication collaborator in front of this service resolves the
// session and forwards the buyer's identity in these headers. The core
// trusts them without re-verifying.
const (
	headerBuyerID   = "X-Buyer-ID"
	headerBuyerRole = "X-Buyer-Role"

	roleAdmin = "admin"

	ctxBuyerID   = "buyerID"
	ctxBuyerRole = "buyerRole"
)

// Identity requires an authenticated buyer on the request.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID := c.GetHeader(headerBuyerID)
		if buyerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(ctxBuyerID, buyerID)
		c.Set(ctxBuyerRole, c.GetHeader(headerBuyerRole))
		c.Next()
	}
}

// RequireAdmin gates administrative routes on the role carried in the
// authenticated identity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxBuyerRole) != roleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func buyerID(c *gin.Context) string {
	return c.GetString(ctxBuyerID)
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(ctxBuyerRole) == roleAdmin
}
