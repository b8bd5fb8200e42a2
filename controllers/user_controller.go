// File: /controllers/user_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/models"
	"messenger-api/utils"
)

type UserController struct{}

func NewUserController() *UserController {
	return &UserController{}
}

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

type PrivacyRequest struct {
	IsPrivate *bool `json:"is_private" binding:"required"`
}

type PresenceRequest struct {
	Status models.PresenceStatus `json:"status" binding:"required"`
}

func (uc *UserController) UpdateProfile(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	if req.Name == nil && req.Avatar == nil {
		utils.SendValidationError(c, "Nothing to update")
		return
	}

	principal, err := session.Identity.UpdateProfile(c.Request.Context(), req.Name, req.Avatar)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Profile updated successfully", principal)
}

func (uc *UserController) UpdatePrivacy(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req PrivacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	if err := session.Relationships.TogglePrivacy(c.Request.Context(), *req.IsPrivate); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Privacy updated successfully", gin.H{"is_private": *req.IsPrivate})
}

func (uc *UserController) UpdatePresence(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	if err := session.Identity.SetPresence(c.Request.Context(), req.Status); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Status updated", gin.H{"status": req.Status})
}

func (uc *UserController) Search(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	results, err := session.Relationships.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}
