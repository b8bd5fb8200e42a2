// File: /controllers/session_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/middleware"
	"messenger-api/services"
	"messenger-api/utils"
)

// currentSession returns the session attached by the auth middleware and
// answers 401 when there is none.
func currentSession(c *gin.Context) (*services.Session, bool) {
	session := middleware.SessionFrom(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "Not signed in")
		return nil, false
	}
	return session, true
}

type SessionController struct {
	registry *services.SessionRegistry
}

func NewSessionController(registry *services.SessionRegistry) *SessionController {
	return &SessionController{registry: registry}
}

// State reports the principal and each manager's loading flag and last error.
func (sc *SessionController) State(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// Sessions lists every live session. Development only.
func (sc *SessionController) Sessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":    sc.registry.Len(),
		"sessions": sc.registry.States(),
	})
}
