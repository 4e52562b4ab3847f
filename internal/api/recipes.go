package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mealdeal/internal/logger"
	"mealdeal/internal/recipe"
)

type rateRequest struct {
	Rating int `json:"rating"`
}

type modifyRequest struct {
	Recipe recipe.Draft `json:"recipe" binding:"required"`
	Prompt string       `json:"prompt" binding:"required"`
}

// ListRecipes returns recipes filtered by min_rating, ordered by sort_by and
// narrowed to those carrying every tag in the tags query param.
func (h *Handler) ListRecipes(c *gin.Context) {
	var filter recipe.ListFilter

	if raw := c.Query("min_rating"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "min_rating must be a number")
			return
		}
		filter.MinRating = &min
	}

	switch sort := c.Query("sort_by"); sort {
	case "", recipe.SortRatingAsc, recipe.SortRatingDesc:
		filter.Sort = sort
	default:
		errorJSON(c, http.StatusBadRequest, "sort_by must be rating_asc or rating_desc")
		return
	}

	if raw := c.Query("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Tags = append(filter.Tags, t)
			}
		}
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	recipes, err := h.RecipeStore.List(ctx, filter)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, recipes)
}

// GetRecipe returns one recipe by id.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	r, err := h.RecipeStore.Get(ctx, id)
	if err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "recipe not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, r)
}

// CreateRecipe persists a recipe and its ingredient links transactionally.
func (h *Handler) CreateRecipe(c *gin.Context) {
	var draft recipe.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	r, err := h.RecipeStore.Create(ctx, draft)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to create recipe")
		return
	}

	c.JSON(http.StatusCreated, r)
}

// DeleteRecipe removes a recipe; its ingredient links go with it, shared
// ingredients stay.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if err := h.RecipeStore.Delete(ctx, id); err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "recipe not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}

// RateRecipe submits or updates the caller's rating for a recipe.
func (h *Handler) RateRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	r, err := h.RecipeStore.Rate(ctx, currentUser(c).ID, id, req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, recipe.ErrInvalidRating):
			errorJSON(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, recipe.ErrNotFound):
			errorJSON(c, http.StatusNotFound, "recipe not found")
		default:
			errorJSON(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	c.JSON(http.StatusOK, r)
}

// ModifyRecipe runs an AI-assisted edit of a recipe. The result is returned
// to the client, not persisted.
func (h *Handler) ModifyRecipe(c *gin.Context) {
	// Matched as POST /api/recipes/:id because the router cannot mix a
	// static "modify" segment with the ":id" wildcard.
	if c.Param("id") != "modify" {
		errorJSON(c, http.StatusNotFound, "not found")
		return
	}

	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 45*time.Second)
	defer cancel()

	modified, err := h.Generator.ModifyRecipe(ctx, req.Recipe, req.Prompt)
	if err != nil {
		logger.Warn("recipe modification failed", zap.Error(err))
		errorJSON(c, http.StatusBadGateway, "could not modify the recipe, please try again")
		return
	}

	c.JSON(http.StatusOK, modified)
}

// GenerateRecipes generates recipes from today's specials, the caller's
// preferences and their pantry, and persists the results. An empty generation
// is a 200 with an empty list.
func (h *Handler) GenerateRecipes(c *gin.Context) {
	u := currentUser(c)

	ctx, cancel := contextWithTimeout(c, 60*time.Second)
	defer cancel()

	specials, err := h.IngredientStore.TodayPrices(ctx)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	pantry, err := h.UserStore.Pantry(ctx, u.ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	drafts := h.Generator.GenerateRecipes(ctx, specials, u, pantry)

	// Each draft commits in its own transaction, so a bad draft is dropped
	// rather than failing the whole batch after earlier drafts landed.
	saved := make([]*recipe.Recipe, 0, len(drafts))
	for _, draft := range drafts {
		r, err := h.RecipeStore.Create(ctx, draft)
		if err != nil {
			logger.Warn("failed to save generated recipe", zap.String("title", draft.Title), zap.Error(err))
			continue
		}
		saved = append(saved, r)
	}

	c.JSON(http.StatusOK, saved)
}

// GetTags returns the distinct tag vocabulary.
func (h *Handler) GetTags(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	tags, err := h.RecipeStore.Tags(ctx)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, tags)
}
