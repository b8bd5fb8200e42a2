// File: /controllers/auth_controller.go
package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-api/middleware"
	"messenger-api/models"
	"messenger-api/services"
	"messenger-api/utils"
)

type AuthController struct {
	registry *services.SessionRegistry
	tokens   *services.TokenService
	log      *zap.Logger
}

func NewAuthController(registry *services.SessionRegistry, tokens *services.TokenService, log *zap.Logger) *AuthController {
	return &AuthController{
		registry: registry,
		tokens:   tokens,
		log:      log,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	SessionID string            `json:"session_id"`
	User      *models.Principal `json:"user"`
}

func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	session, err := ac.registry.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	ac.respondWithToken(c, http.StatusCreated, session)
}

func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	session, err := ac.registry.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	ac.respondWithToken(c, http.StatusOK, session)
}

func (ac *AuthController) respondWithToken(c *gin.Context, status int, session *services.Session) {
	principal := session.Identity.Principal()
	token, claims, err := ac.tokens.Issue(principal.ID, session.ID)
	if err != nil {
		ac.log.Error("token issue failed", zap.String("user_id", principal.ID), zap.Error(err))
		_ = ac.registry.Close(c.Request.Context(), session.ID)
		utils.SendError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(status, AuthResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		SessionID: session.ID,
		User:      principal,
	})
}

// Logout revokes the token and ends its session.
func (ac *AuthController) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if claims := middleware.ClaimsFrom(c); claims != nil {
		if err := ac.tokens.Revoke(ctx, claims); err != nil {
			utils.SendAppError(c, err)
			return
		}
		if err := ac.registry.Close(ctx, claims.SessionID); err != nil {
			utils.SendAppError(c, err)
			return
		}
	}
	utils.SendSuccess(c, "Logged out successfully", nil)
}

// Me reloads the principal from the store so role and profile edits made
// elsewhere show up.
func (ac *AuthController) Me(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	session.Identity.Invalidate()
	principal := session.Identity.CurrentPrincipal(c.Request.Context())
	if principal == nil {
		utils.SendError(c, http.StatusUnauthorized, "Not signed in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": principal})
}
