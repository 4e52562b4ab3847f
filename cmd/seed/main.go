package main

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"mealdeal/internal/ingredient"
	"mealdeal/internal/logger"
	"mealdeal/internal/recipe"
	"mealdeal/internal/user"
)

// Seeds a demo recipe so a fresh database has something to browse before the
// first scrape or generation runs. Safe to re-run, though it inserts another
// copy of the recipe each time.
func main() {
	logger.Init()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if _, err := ingredient.NewStore(db); err != nil {
		logger.Error("failed to prepare ingredient tables", zap.Error(err))
		os.Exit(1)
	}
	if _, err := user.NewStore(db); err != nil {
		logger.Error("failed to prepare user tables", zap.Error(err))
		os.Exit(1)
	}
	recipeStore, err := recipe.NewStore(db)
	if err != nil {
		logger.Error("failed to prepare recipe tables", zap.Error(err))
		os.Exit(1)
	}

	draft := recipe.Draft{
		Title:       "Sheet Pan Lemon Herb Chicken",
		Description: "A simple, delicious, and easy-to-clean-up one-pan meal.",
		Instructions: "1. Preheat oven to 200°C (400°F).\n" +
			"2. Chop broccoli into florets. Mince garlic.\n" +
			"3. In a large bowl, toss chicken and broccoli with olive oil, minced garlic, dried herbs, juice of half a lemon, salt, and pepper.\n" +
			"4. Spread evenly on a baking sheet.\n" +
			"5. Bake for 20-25 minutes, or until chicken is cooked through and broccoli is tender-crisp.\n" +
			"6. Squeeze remaining lemon juice over the top before serving.",
		Ingredients: []recipe.DraftIngredient{
			{Name: "Chicken Breast", Quantity: "2 boneless, skinless"},
			{Name: "Broccoli", Quantity: "1 large head"},
			{Name: "Lemon", Quantity: "1 whole"},
			{Name: "Olive Oil", Quantity: "2 tablespoons"},
			{Name: "Garlic", Quantity: "3 cloves"},
			{Name: "Dried Herbs (e.g., Oregano)", Quantity: "1 tablespoon"},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := recipeStore.Create(ctx, draft)
	if err != nil {
		logger.Error("failed to seed recipe", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("database seeded",
		zap.Int64("recipe_id", r.ID),
		zap.String("title", r.Title),
		zap.Int("ingredients", len(r.Ingredients)))
}
