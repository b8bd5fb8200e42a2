// File: /controllers/admin_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/models"
	"messenger-api/utils"
)

type AdminController struct{}

func NewAdminController() *AdminController {
	return &AdminController{}
}

type ToggleFeatureRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type ReviewFlagRequest struct {
	Status models.FlagStatus `json:"status" binding:"required"`
}

func (ac *AdminController) GetFeatures(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	features, err := session.Admin.RefreshFeatures(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features})
}

func (ac *AdminController) ToggleFeature(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req ToggleFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	features, err := session.Admin.ToggleFeature(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Feature updated", gin.H{"features": features})
}

func (ac *AdminController) GetConversations(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	conversations, err := session.Admin.RefreshConversations(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (ac *AdminController) GetFlaggedContent(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	flagged, err := session.Admin.RefreshFlaggedContent(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}

func (ac *AdminController) ReviewFlaggedMessage(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req ReviewFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	if err := session.Admin.ReviewFlaggedMessage(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Flag updated", gin.H{"id": c.Param("id"), "status": req.Status})
}

func (ac *AdminController) GetUsageMetrics(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	usage, err := session.Admin.RefreshUsageMetrics(c.Request.Context(), c.Query("window"))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}
