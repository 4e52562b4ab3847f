package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"mealdeal/internal/api"
	"mealdeal/internal/auth"
	"mealdeal/internal/config"
	"mealdeal/internal/ingredient"
	"mealdeal/internal/logger"
	"mealdeal/internal/platform/gemini"
	"mealdeal/internal/recipe"
	"mealdeal/internal/user"
)

func main() {
	ctx := context.Background()

	logger.Init()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to connect to database: %w", err))
	}

	// Schema creation order matters: ingredients and users first, recipes and
	// their link tables after.
	ingredientStore, err := ingredient.NewStore(db)
	if err != nil {
		panic(fmt.Errorf("error creating ingredient store: %w", err))
	}
	userStore, err := user.NewStore(db)
	if err != nil {
		panic(fmt.Errorf("error creating user store: %w", err))
	}
	recipeStore, err := recipe.NewStore(db)
	if err != nil {
		panic(fmt.Errorf("error creating recipe store: %w", err))
	}
	if err := userStore.EnsureSavedRecipesTable(); err != nil {
		panic(err)
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		panic(fmt.Errorf("error creating gemini client: %w", err))
	}

	verifier := auth.NewGoogleVerifier(cfg.GoogleClientID)

	handler := api.NewHandler(recipeStore, ingredientStore, userStore, geminiClient, verifier, []byte(cfg.JWTSecret))

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authd := handler.RequireAuth()

	r.POST("/register", handler.Register)
	r.POST("/token", handler.Token)
	r.POST("/api/auth/google", handler.GoogleLogin)
	r.GET("/users/me", authd, handler.GetProfile)
	r.PUT("/users/me", authd, handler.UpdateProfile)

	r.GET("/api/recipes", handler.ListRecipes)
	r.POST("/api/recipes", authd, handler.CreateRecipe)
	r.GET("/api/recipes/:id", handler.GetRecipe)
	r.DELETE("/api/recipes/:id", authd, handler.DeleteRecipe)
	r.POST("/api/recipes/:id/rate", authd, handler.RateRecipe)
	// gin cannot register the static "modify" segment next to the ":id"
	// wildcard, so POST /api/recipes/modify is matched by the wildcard route
	// and dispatched in the handler.
	r.POST("/api/recipes/:id", authd, handler.ModifyRecipe)
	r.POST("/api/generate-recipes", authd, handler.GenerateRecipes)
	r.GET("/api/tags", handler.GetTags)

	r.GET("/api/pantry", authd, handler.GetPantry)
	r.POST("/api/pantry", authd, handler.AddPantryItem)
	r.DELETE("/api/pantry/:ingredient_id", authd, handler.RemovePantryItem)

	r.GET("/api/users/me/saved-recipes", authd, handler.GetSavedRecipes)
	r.POST("/api/users/me/saved-recipes", authd, handler.SaveRecipe)
	r.DELETE("/api/users/me/saved-recipes/:recipe_id", authd, handler.UnsaveRecipe)

	r.GET("/api/ingredients/search", handler.SearchIngredients)
	r.GET("/api/ingredients/staples", handler.GetStaples)
	r.GET("/api/ingredient/:id/price-history", handler.GetIngredientPriceHistory)

	r.GET("/api/prices", handler.GetPrices)
	r.POST("/api/prices", handler.RecordPrice)
	// DELETE /api/prices/today shares the wildcard route; DeletePrice
	// dispatches on the literal "today".
	r.DELETE("/api/prices/:id", handler.DeletePrice)

	logger.Info("starting api server", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		panic(fmt.Errorf("server exited: %w", err))
	}
}
