// File: /controllers/chat_controller.go
package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/models"
	"messenger-api/services"
	"messenger-api/utils"
)

// MaxUploadSize caps a single attachment.
const MaxUploadSize = 25 << 20

type ChatController struct{}

func NewChatController() *ChatController {
	return &ChatController{}
}

type CreateChatRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

type SelectChatRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type FlagMessageRequest struct {
	Reason   string              `json:"reason" binding:"required"`
	Severity models.FlagSeverity `json:"severity"`
}

func (cc *ChatController) GetChats(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	chats, err := session.Messaging.RefreshChats(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chats":       chats,
		"selected_id": session.Messaging.SelectedChatID(),
	})
}

// CreateChat returns the conversation with the recipient, creating it on
// first contact.
func (cc *ChatController) CreateChat(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	id, err := session.Messaging.CreateConversation(c.Request.Context(), req.RecipientID)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendCreated(c, "Conversation ready", gin.H{"id": id, "chats": session.Messaging.Chats()})
}

func (cc *ChatController) SelectChat(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req SelectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	conversation, err := session.Messaging.SelectChat(c.Request.Context(), req.ChatID)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

func (cc *ChatController) ClearSelection(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	if _, err := session.Messaging.SelectChat(c.Request.Context(), ""); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Selection cleared", nil)
}

func (cc *ChatController) GetChat(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	conversation, err := session.Messaging.OpenConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// SendMessage posts text to the selected chat. Blank text is accepted and
// ignored.
func (cc *ChatController) SendMessage(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	message, err := session.Messaging.SendMessage(c.Request.Context(), req.Content)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	if message == nil {
		utils.SendSuccess(c, "Nothing to send", nil)
		return
	}
	utils.SendCreated(c, "Message sent", message)
}

func (cc *ChatController) AttachMedia(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.SendValidationError(c, "No file provided")
		return
	}
	if header.Size > MaxUploadSize {
		utils.SendValidationError(c, fmt.Sprintf("File exceeds the %d MB limit", MaxUploadSize>>20))
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Failed to read upload")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	message, err := session.Messaging.AttachMedia(c.Request.Context(), services.MediaUpload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendCreated(c, "Attachment sent", message)
}

func (cc *ChatController) FlagMessage(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req FlagMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	if err := session.Messaging.FlagMessage(c.Request.Context(), c.Param("id"), req.Reason, req.Severity); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Message reported", nil)
}
