package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdeal/internal/recipe"
	"mealdeal/internal/user"
)

type addPantryRequest struct {
	IngredientName string `json:"ingredient_name" binding:"required"`
}

type saveRecipeRequest struct {
	RecipeID int64 `json:"recipe_id" binding:"required"`
}

// GetPantry lists the caller's pantry contents.
func (h *Handler) GetPantry(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	items, err := h.UserStore.Pantry(ctx, currentUser(c).ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, items)
}

// AddPantryItem resolves the named ingredient, creating it on first
// reference, and links it to the caller's pantry.
func (h *Handler) AddPantryItem(c *gin.Context) {
	var req addPantryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	ing, err := h.IngredientStore.Resolve(ctx, req.IngredientName, nil)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	if err := h.UserStore.AddPantryItem(ctx, currentUser(c).ID, ing.ID); err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusCreated, user.PantryItem{
		IngredientID: ing.ID,
		Name:         ing.Name,
		Category:     ing.Category,
		IsStaple:     ing.IsStaple,
	})
}

// RemovePantryItem unlinks an ingredient from the caller's pantry.
func (h *Handler) RemovePantryItem(c *gin.Context) {
	ingredientID, ok := pathID(c, "ingredient_id")
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if err := h.UserStore.RemovePantryItem(ctx, currentUser(c).ID, ingredientID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "pantry item not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "pantry item removed"})
}

// GetSavedRecipes returns the caller's saved recipes in full.
func (h *Handler) GetSavedRecipes(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	ids, err := h.UserStore.SavedRecipeIDs(ctx, currentUser(c).ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	recipes, err := h.RecipeStore.ByIDs(ctx, ids)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, recipes)
}

// SaveRecipe adds a recipe to the caller's saved set.
func (h *Handler) SaveRecipe(c *gin.Context) {
	var req saveRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if _, err := h.RecipeStore.Get(ctx, req.RecipeID); err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "recipe not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	if err := h.UserStore.SaveRecipe(ctx, currentUser(c).ID, req.RecipeID); err != nil {
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "recipe saved"})
}

// UnsaveRecipe removes a recipe from the caller's saved set.
func (h *Handler) UnsaveRecipe(c *gin.Context) {
	recipeID, ok := pathID(c, "recipe_id")
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if err := h.UserStore.UnsaveRecipe(ctx, currentUser(c).ID, recipeID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "saved recipe not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "recipe unsaved"})
}
