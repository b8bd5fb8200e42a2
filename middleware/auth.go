// File: /middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-api/errs"
	"messenger-api/services"
	"messenger-api/utils"
)

const (
	ContextSession = "session"
	ContextClaims  = "claims"
	ContextUserID  = "user_id"
)

// AuthMiddleware validates the bearer token and attaches the session it
// names, rebuilding the session when this process does not hold it.
func AuthMiddleware(tokens *services.TokenService, registry *services.SessionRegistry, presence *services.PresenceService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		ctx := c.Request.Context()
		claims, err := tokens.Parse(ctx, tokenString)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			unauthorized(c, "Invalid or expired token")
			return
		}

		session, err := registry.Resume(ctx, claims.SessionID, claims.UserID)
		if err != nil {
			utils.SendAppError(c, err)
			c.Abort()
			return
		}
		if p := session.Identity.Principal(); p == nil || p.ID != claims.UserID {
			unauthorized(c, "Session has ended, sign in again")
			return
		}

		if presence != nil {
			if err := presence.Touch(ctx, claims.UserID); err != nil {
				log.Debug("presence heartbeat failed", zap.String("user_id", claims.UserID), zap.Error(err))
			}
		}

		c.Set(ContextSession, session)
		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
		Error:   http.StatusText(http.StatusUnauthorized),
		Message: message,
		Kind:    string(errs.KindAuthentication),
		Code:    http.StatusUnauthorized,
	})
}

// RequireAdmin lets only administrator sessions through.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil || !session.Identity.Principal().IsAdmin() {
			utils.SendAppError(c, errs.New(errs.KindAuthorization, "Administrator access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session attached by AuthMiddleware.
func SessionFrom(c *gin.Context) *services.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	s, _ := v.(*services.Session)
	return s
}

func ClaimsFrom(c *gin.Context) *services.Claims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*services.Claims)
	return claims
}
