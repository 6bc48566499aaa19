package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tiendapos/internal/apierror"
	"tiendapos/internal/auth"

	"github.com/gin-gonic/gin"
)

const IdentityKey = "identity"

// readyWait bounds how long a request may wait for the identity provider's
// key material to settle before being rejected as not authenticated.
const readyWait = 5 * time.Second

// RequireAuth validates the Bearer token on every protected route. Requests
// arriving before the verifier is ready wait (bounded) instead of failing
// immediately; a verifier that never settles yields 503, not 401, so clients
// know to retry.
func RequireAuth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyWait)
		defer cancel()
		if err := v.WaitReady(ctx); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apierror.New("Autenticación no disponible"))
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticación requerida"))
			return
		}

		identity, err := v.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token inválido o expirado"))
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// GetIdentity is a helper to retrieve the resolved caller from the Gin context.
func GetIdentity(c *gin.Context) *auth.Identity {
	identity, _ := c.MustGet(IdentityKey).(*auth.Identity)
	return identity
}
