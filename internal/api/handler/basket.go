package handler

import (
	"net/http"

	"dormpool/backend/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// CreateBasket opens a basket for the caller. The response reports where it
// landed: the pool it joined, or the chatroom it was routed into.
func (h *Handler) CreateBasket(c *gin.Context) {
	var in lifecycle.CreateBasketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.OwnerID = currentUser(c)

	result, err := h.Baskets.Create(in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) UpdateBasket(c *gin.Context) {
	var in lifecycle.UpdateBasketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Baskets.Update(c.Param("id"), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteBasket(c *gin.Context) {
	if err := h.Baskets.Delete(c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleBasketReady flips the owner's ready flag. Readiness is a signal to
// the other members, it does not gate pool funding.
func (h *Handler) ToggleBasketReady(c *gin.Context) {
	basket, err := h.Baskets.ToggleReady(c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, basket)
}

func (h *Handler) GetBasket(c *gin.Context) {
	basket, err := h.Baskets.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, basket)
}

func (h *Handler) ListMyBaskets(c *gin.Context) {
	baskets, err := h.Baskets.ListMine(currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, baskets)
}

// GetPool returns a pool with its baskets, the aggregate clients render on
// the pool screen.
func (h *Handler) GetPool(c *gin.Context) {
	detail, err := h.Pools.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListOpenPools(c *gin.Context) {
	pools, err := h.Store.ListOpenPools()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pools)
}
