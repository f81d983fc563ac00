package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"planextract/internal/port"
)

const (
	ContextKeyEmail    = "email"
	ContextKeySubject  = "subject"
	ContextKeyIdentity = "identity"
)

// AuthMiddleware returns Gin middleware that validates bearer tokens and
// requires a verified e-mail in allowedDomain. An empty allowedDomain accepts
// any verified e-mail.
func AuthMiddleware(verifier port.IdentityVerifier, allowedDomain string) gin.HandlerFunc {
	suffix := "@" + strings.ToLower(strings.TrimPrefix(allowedDomain, "@"))
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		email := strings.ToLower(identity.Email)
		if !identity.EmailVerified || email == "" || (allowedDomain != "" && !strings.HasSuffix(email, suffix)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "only verified " + suffix + " accounts are allowed"},
			})
			return
		}

		c.Set(ContextKeyEmail, identity.Email)
		c.Set(ContextKeySubject, identity.Subject)
		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// GetEmail extracts the caller e-mail from the Gin context.
func GetEmail(c *gin.Context) string {
	val, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	return val.(string)
}
