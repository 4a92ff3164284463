package auth

import (
	"strings"
	"time"

	"storefront-service/internal/apperr"

	"github.com/gin-gonic/gin"
)

const principalKey = "auth.principal"

// RequireAuth verifies the Authorization bearer token and stores the
// principal on the request context.
func RequireAuth(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			abortWith(c, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}

		principal, err := verifier.Verify(token)
		if err != nil {
			abortWith(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole allows only principals holding one of the given roles.
// Must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			abortWith(c, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		abortWith(c, apperr.New(apperr.CodeForbidden, "insufficient role"))
	}
}

// PrincipalFrom returns the authenticated principal for the request.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func abortWith(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr == nil {
		appErr = apperr.New(apperr.CodeUnauthorized, "unauthorized")
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), gin.H{
		"code":      appErr.Code,
		"message":   appErr.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
