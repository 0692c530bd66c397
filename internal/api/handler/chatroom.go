package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetChatroom(c *gin.Context) {
	detail, err := h.Chatrooms.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// MarkOrdered is the admin recording that the consolidated order went out.
func (h *Handler) MarkOrdered(c *gin.Context) {
	if err := h.Chatrooms.MarkOrdered(c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkDelivered is the admin confirming delivery, which resolves the
// chatroom and every basket in it.
func (h *Handler) MarkDelivered(c *gin.Context) {
	if err := h.Chatrooms.MarkDelivered(c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LeaveChatroom(c *gin.Context) {
	if err := h.Chatrooms.Leave(c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type memberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) MakeAdmin(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Chatrooms.MakeAdmin(c.Param("id"), currentUser(c), req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.Chatrooms.RemoveMember(c.Param("id"), currentUser(c), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExtendDeadline pushes the chatroom expiry out by one increment, once per
// phase.
func (h *Handler) ExtendDeadline(c *gin.Context) {
	if err := h.Chatrooms.ExtendDeadline(c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
