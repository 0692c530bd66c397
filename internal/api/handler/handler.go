package handler

import (
	"errors"
	"net/http"

	"dormpool/backend/internal/lifecycle"
	"dormpool/backend/internal/objectstore"
	"dormpool/backend/internal/storage"
	"dormpool/backend/internal/synchub"

	"github.com/gin-gonic/gin"
)

// Handler holds the service layer and the sync hub behind the HTTP surface.
type Handler struct {
	Store     storage.Storage
	Baskets   *lifecycle.BasketService
	Pools     *lifecycle.PoolService
	Chatrooms *lifecycle.ChatroomService
	Messages  *lifecycle.MessageService
	Hub       *synchub.ManagerService
	Objects   *objectstore.Service
}

func NewHandler(
	store storage.Storage,
	baskets *lifecycle.BasketService,
	pools *lifecycle.PoolService,
	chatrooms *lifecycle.ChatroomService,
	messages *lifecycle.MessageService,
	hub *synchub.ManagerService,
	objects *objectstore.Service,
) *Handler {
	return &Handler{
		Store:     store,
		Baskets:   baskets,
		Pools:     pools,
		Chatrooms: chatrooms,
		Messages:  messages,
		Hub:       hub,
		Objects:   objects,
	}
}

// respondError translates service errors into HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidState), errors.Is(err, lifecycle.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// currentUser reads the user id the auth middleware stored on the context.
func currentUser(c *gin.Context) string {
	return c.GetString("user_id")
}
