// File: /controllers/friend_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/utils"
)

type FriendController struct{}

func NewFriendController() *FriendController {
	return &FriendController{}
}

func (fc *FriendController) GetFriends(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	friends, err := session.Relationships.RefreshFriends(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (fc *FriendController) RemoveFriend(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	if err := session.Relationships.RemoveFriend(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Friend removed successfully", nil)
}

func (fc *FriendController) GetFriendRequests(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	requests, err := session.Relationships.RefreshRequests(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// SendFriendRequest sends a request to the user named by :id.
func (fc *FriendController) SendFriendRequest(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	request, err := session.Relationships.SendFriendRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendCreated(c, "Friend request sent successfully", request)
}

// AcceptFriendRequest accepts the request named by :id.
func (fc *FriendController) AcceptFriendRequest(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	if err := session.Relationships.AcceptFriendRequest(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Friend request accepted", gin.H{"friends": session.Relationships.Friends()})
}

func (fc *FriendController) DeclineFriendRequest(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	if err := session.Relationships.DeclineFriendRequest(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Friend request declined", nil)
}
