package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdeal/internal/ingredient"
)

type recordPriceRequest struct {
	IngredientName string `json:"ingredient_name" binding:"required"`
	Price          string `json:"price" binding:"required"`
	Store          string `json:"store" binding:"required"`
}

// SearchIngredients looks up ingredients by case-insensitive substring match.
func (h *Handler) SearchIngredients(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, []ingredient.Ingredient{})
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	ingredients, err := h.IngredientStore.Search(ctx, query)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, ingredients)
}

// GetStaples returns the ingredients flagged as pantry staples.
func (h *Handler) GetStaples(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	staples, err := h.IngredientStore.Staples(ctx)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, staples)
}

// GetIngredientPriceHistory returns one ingredient's price rows, newest first.
func (h *Handler) GetIngredientPriceHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	records, err := h.IngredientStore.PriceHistory(ctx, id)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetPrices lists today's price records, the current specials.
func (h *Handler) GetPrices(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	records, err := h.IngredientStore.TodayPrices(ctx)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, records)
}

// RecordPrice resolves the named ingredient and records a price observation
// dated today.
func (h *Handler) RecordPrice(c *gin.Context) {
	var req recordPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	rec, err := h.IngredientStore.RecordPrice(ctx, req.IngredientName, req.Price, req.Store)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// DeletePrice removes one price record.
func (h *Handler) DeletePrice(c *gin.Context) {
	// DELETE /api/prices/today shares this wildcard route.
	if c.Param("id") == "today" {
		h.DeleteTodayPrices(c)
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if err := h.IngredientStore.DeletePrice(ctx, id); err != nil {
		if errors.Is(err, ingredient.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "price record not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "price record deleted"})
}

// DeleteTodayPrices clears today's price records ahead of a re-scrape.
func (h *Handler) DeleteTodayPrices(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	n, err := h.IngredientStore.DeleteTodayPrices(ctx)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
