package ingredient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when an ingredient or price record does not exist.
var ErrNotFound = errors.New("ingredient not found")

// Store provides ingredient and price-history persistence.
type Store struct {
	db *sqlx.DB
}

// NewStore creates the ingredient tables if needed and returns a Store.
func NewStore(db *sqlx.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS ingredients (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		is_staple BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS ingredients_name_lower_idx ON ingredients (LOWER(name));

	CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		ingredient_id BIGINT NOT NULL REFERENCES ingredients(id),
		price TEXT NOT NULL,
		store TEXT NOT NULL,
		date_recorded DATE NOT NULL DEFAULT CURRENT_DATE
	);
	CREATE INDEX IF NOT EXISTS price_history_date_idx ON price_history (date_recorded);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create ingredient tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Resolve returns the ingredient whose name matches case-insensitively,
// creating it when absent. A previously null category is backfilled when one
// is provided. The query runner may be a transaction, so callers composing
// larger units of work stay atomic.
func Resolve(ctx context.Context, ext sqlx.ExtContext, name string, category *string) (*Ingredient, error) {
	name = strings.TrimSpace(name)

	var ing Ingredient
	err := sqlx.GetContext(ctx, ext, &ing,
		"SELECT id, name, category, is_staple FROM ingredients WHERE LOWER(name) = LOWER($1)", name)
	if errors.Is(err, sql.ErrNoRows) {
		// A concurrent Resolve may create the row between the lookup and
		// the insert. The no-op update turns that into returning the
		// existing row instead of a unique violation, which would abort an
		// enclosing transaction.
		err = sqlx.GetContext(ctx, ext, &ing, `
			INSERT INTO ingredients (name, category) VALUES ($1, $2)
			ON CONFLICT (LOWER(name)) DO UPDATE SET name = ingredients.name
			RETURNING id, name, category, is_staple`,
			name, category)
		if err != nil {
			return nil, fmt.Errorf("failed to create ingredient: %w", err)
		}
		return &ing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ingredient: %w", err)
	}

	if ing.Category == nil && category != nil {
		if _, err := ext.ExecContext(ctx, "UPDATE ingredients SET category = $1 WHERE id = $2", *category, ing.ID); err != nil {
			return nil, fmt.Errorf("failed to backfill ingredient category: %w", err)
		}
		ing.Category = category
	}

	return &ing, nil
}

// Resolve is the store-level variant of the package Resolve.
func (s *Store) Resolve(ctx context.Context, name string, category *string) (*Ingredient, error) {
	return Resolve(ctx, s.db, name, category)
}

// Search returns ingredients whose name contains the query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]Ingredient, error) {
	ingredients := []Ingredient{}
	err := s.db.SelectContext(ctx, &ingredients,
		"SELECT id, name, category, is_staple FROM ingredients WHERE name ILIKE '%' || $1 || '%' ORDER BY name",
		strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search ingredients: %w", err)
	}
	return ingredients, nil
}

// Staples returns the ingredients flagged as pantry staples.
func (s *Store) Staples(ctx context.Context) ([]Ingredient, error) {
	ingredients := []Ingredient{}
	err := s.db.SelectContext(ctx, &ingredients,
		"SELECT id, name, category, is_staple FROM ingredients WHERE is_staple ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get staples: %w", err)
	}
	return ingredients, nil
}

// RecordPrice resolves the named ingredient and inserts a price row dated today.
func (s *Store) RecordPrice(ctx context.Context, ingredientName, price, store string) (*PriceRecord, error) {
	ing, err := s.Resolve(ctx, ingredientName, nil)
	if err != nil {
		return nil, err
	}

	var rec PriceRecord
	err = s.db.GetContext(ctx, &rec,
		"INSERT INTO price_history (ingredient_id, price, store) VALUES ($1, $2, $3) RETURNING id, ingredient_id, price, store, date_recorded",
		ing.ID, price, store)
	if err != nil {
		return nil, fmt.Errorf("failed to record price: %w", err)
	}
	rec.IngredientName = ing.Name
	return &rec, nil
}

// TodayPrices returns today's price records, the current specials.
func (s *Store) TodayPrices(ctx context.Context) ([]PriceRecord, error) {
	records := []PriceRecord{}
	err := s.db.SelectContext(ctx, &records, `
		SELECT p.id, p.ingredient_id, i.name AS ingredient_name, p.price, p.store, p.date_recorded
		FROM price_history p
		JOIN ingredients i ON i.id = p.ingredient_id
		WHERE p.date_recorded = CURRENT_DATE
		ORDER BY i.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get today's prices: %w", err)
	}
	return records, nil
}

// PriceHistory returns all price records for one ingredient, newest first.
func (s *Store) PriceHistory(ctx context.Context, ingredientID int64) ([]PriceRecord, error) {
	records := []PriceRecord{}
	err := s.db.SelectContext(ctx, &records, `
		SELECT p.id, p.ingredient_id, i.name AS ingredient_name, p.price, p.store, p.date_recorded
		FROM price_history p
		JOIN ingredients i ON i.id = p.ingredient_id
		WHERE p.ingredient_id = $1
		ORDER BY p.date_recorded DESC, p.id DESC`, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return records, nil
}

// DeletePrice removes a single price record.
func (s *Store) DeletePrice(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM price_history WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete price record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTodayPrices clears today's price records ahead of a re-scrape.
func (s *Store) DeleteTodayPrices(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM price_history WHERE date_recorded = CURRENT_DATE")
	if err != nil {
		return 0, fmt.Errorf("failed to delete today's prices: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
