package handler

import (
	"net/http"
	"strconv"

	"dormpool/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Content string             `json:"content" binding:"required"`
	Type    models.MessageType `json:"type"`
}

// SendMessage posts a message into the chatroom. Attachments are sent as
// their object key with type image or audio; the upload itself goes through
// the presigned URL endpoint.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Messages.Send(c.Param("id"), currentUser(c), req.Type, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	views, err := h.Messages.List(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) MarkMessageRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("messageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	if err := h.Messages.MarkRead(uint(id), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AttachmentUploadURL hands the client a presigned PUT URL plus the key to
// reference in the message it sends afterwards.
func (h *Handler) AttachmentUploadURL(c *gin.Context) {
	fileName := c.Query("file_name")
	contentType := c.Query("content_type")
	if fileName == "" || contentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_name and content_type are required"})
		return
	}
	if h.Objects == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachments are not configured"})
		return
	}

	url, key, err := h.Objects.UploadURL(fileName, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign upload URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}
