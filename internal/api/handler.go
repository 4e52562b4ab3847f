package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mealdeal/internal/auth"
	"mealdeal/internal/ingredient"
	"mealdeal/internal/recipe"
	"mealdeal/internal/user"
)

// RecipeStore defines the recipe data operations the handlers need.
type RecipeStore interface {
	Create(ctx context.Context, d recipe.Draft) (*recipe.Recipe, error)
	Get(ctx context.Context, id int64) (*recipe.Recipe, error)
	ByIDs(ctx context.Context, ids []int64) ([]*recipe.Recipe, error)
	List(ctx context.Context, f recipe.ListFilter) ([]*recipe.Recipe, error)
	Delete(ctx context.Context, id int64) error
	Rate(ctx context.Context, userID, recipeID int64, rating int) (*recipe.Recipe, error)
	Tags(ctx context.Context) ([]string, error)
}

// IngredientStore defines the ingredient and price-history operations.
type IngredientStore interface {
	Resolve(ctx context.Context, name string, category *string) (*ingredient.Ingredient, error)
	Search(ctx context.Context, query string) ([]ingredient.Ingredient, error)
	Staples(ctx context.Context) ([]ingredient.Ingredient, error)
	RecordPrice(ctx context.Context, ingredientName, price, store string) (*ingredient.PriceRecord, error)
	TodayPrices(ctx context.Context) ([]ingredient.PriceRecord, error)
	PriceHistory(ctx context.Context, ingredientID int64) ([]ingredient.PriceRecord, error)
	DeletePrice(ctx context.Context, id int64) error
	DeleteTodayPrices(ctx context.Context) (int64, error)
}

// UserStore defines the user, pantry and saved-recipe operations.
type UserStore interface {
	Create(ctx context.Context, email string, hashedPassword, googleUserID *string) (*user.User, error)
	ByEmail(ctx context.Context, email string) (*user.User, error)
	ByID(ctx context.Context, id int64) (*user.User, error)
	AttachGoogleID(ctx context.Context, userID int64, googleUserID string) error
	UpdateProfile(ctx context.Context, userID int64, patch user.ProfilePatch) (*user.User, error)
	SaveRecipe(ctx context.Context, userID, recipeID int64) error
	UnsaveRecipe(ctx context.Context, userID, recipeID int64) error
	SavedRecipeIDs(ctx context.Context, userID int64) ([]int64, error)
	AddPantryItem(ctx context.Context, userID, ingredientID int64) error
	RemovePantryItem(ctx context.Context, userID, ingredientID int64) error
	Pantry(ctx context.Context, userID int64) ([]user.PantryItem, error)
}

// Generator defines the recipe-generation client boundary.
type Generator interface {
	GenerateRecipes(ctx context.Context, specials []ingredient.PriceRecord, u *user.User, pantry []user.PantryItem) []recipe.Draft
	ModifyRecipe(ctx context.Context, original recipe.Draft, instruction string) (*recipe.Draft, error)
}

// GoogleVerifier validates third-party identity tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*auth.GoogleIdentity, error)
}

// Handler handles HTTP requests.
type Handler struct {
	RecipeStore     RecipeStore
	IngredientStore IngredientStore
	UserStore       UserStore
	Generator       Generator
	GoogleVerifier  GoogleVerifier
	jwtSecret       []byte
}

// NewHandler creates a new Handler.
func NewHandler(recipes RecipeStore, ingredients IngredientStore, users UserStore, generator Generator, verifier GoogleVerifier, jwtSecret []byte) *Handler {
	return &Handler{
		RecipeStore:     recipes,
		IngredientStore: ingredients,
		UserStore:       users,
		Generator:       generator,
		GoogleVerifier:  verifier,
		jwtSecret:       jwtSecret,
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
