package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mealdeal/internal/logger"
	"mealdeal/internal/scraper"
)

const defaultStoreURL = "https://www.coles.com.au/on-special?filter_Special=halfprice"

func main() {
	logger.Init()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment")
	}

	apiBase := getEnv("API_BASE_URL", "http://localhost:8000")
	pages := []scraper.StorePage{
		{Store: getEnv("STORE_NAME", "Coles"), URL: getEnv("STORE_URL", defaultStoreURL)},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	s := scraper.New(scraper.NewPageFetcher(httpClient), httpClient, apiBase, pages)

	saved := s.Run(ctx)
	logger.Info("scraper finished", zap.Int("prices_saved", saved))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
