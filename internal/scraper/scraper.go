package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"mealdeal/internal/logger"
)

// A browser User-Agent keeps retailer sites from rejecting the fetch.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// PageFetcher fetches one category page of retailer HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*http.Response, error)
}

// HTTPPageFetcher is the default PageFetcher.
type HTTPPageFetcher struct {
	client *http.Client
}

// NewPageFetcher returns a PageFetcher backed by the given HTTP client, or
// http.DefaultClient when nil.
func NewPageFetcher(client *http.Client) *HTTPPageFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPageFetcher{client: client}
}

func (f *HTTPPageFetcher) Fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return resp, nil
}

// StorePage is one retailer category page to scrape.
type StorePage struct {
	Store string
	URL   string
}

// Scraper extracts price specials from retailer pages and posts them to the
// API's price-history endpoint.
type Scraper struct {
	fetcher PageFetcher
	client  *http.Client
	apiBase string
	pages   []StorePage
}

// New returns a Scraper posting to the API at apiBase.
func New(fetcher PageFetcher, client *http.Client, apiBase string, pages []StorePage) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scraper{fetcher: fetcher, client: client, apiBase: apiBase, pages: pages}
}

// Run clears today's price records, scrapes every configured page and posts
// each extracted product. Failed pages and failed saves are logged and
// skipped. Returns the number of successful saves.
func (s *Scraper) Run(ctx context.Context) int {
	if err := s.clearToday(ctx); err != nil {
		logger.Warn("failed to clear today's prices", zap.Error(err))
	}

	saved := 0
	for _, page := range s.pages {
		n, err := s.scrapePage(ctx, page)
		if err != nil {
			logger.Error("page scrape failed", zap.String("store", page.Store), zap.String("url", page.URL), zap.Error(err))
			continue
		}
		saved += n
	}

	logger.Info("scrape complete", zap.Int("saved", saved))
	return saved
}

func (s *Scraper) scrapePage(ctx context.Context, page StorePage) (int, error) {
	resp, err := s.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("non-200 status code: %d", resp.StatusCode)
	}

	products, err := ParseProducts(resp.Body)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		logger.Warn("no products found; the page structure may have changed", zap.String("url", page.URL))
		return 0, nil
	}

	saved := 0
	for _, p := range products {
		if err := s.savePrice(ctx, p, page.Store); err != nil {
			logger.Warn("failed to save price", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		saved++
	}
	return saved, nil
}

func (s *Scraper) savePrice(ctx context.Context, p Product, store string) error {
	payload, err := json.Marshal(map[string]string{
		"ingredient_name": p.Name,
		"price":           p.Price,
		"store":           store,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal price payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/api/prices", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("price save rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (s *Scraper) clearToday(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.apiBase+"/api/prices/today", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call delete endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete rejected with status %d", resp.StatusCode)
	}
	return nil
}
