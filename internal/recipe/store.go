package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"mealdeal/internal/ingredient"
)

var (
	// ErrNotFound is returned when a recipe does not exist.
	ErrNotFound = errors.New("recipe not found")
	// ErrInvalidRating is returned when a rating falls outside [1,5].
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// selectColumns derives average_rating in SQL the same way Average does in Go,
// guarding the zero-count case.
const selectColumns = `
	SELECT id, title, description, instructions, tags, total_rating, rating_count,
		CASE WHEN rating_count = 0 THEN 0
		     ELSE ROUND(total_rating::numeric / rating_count, 1)
		END AS average_rating
	FROM recipes`

// Store provides recipe, link and rating persistence.
type Store struct {
	db *sqlx.DB
}

// NewStore creates the recipe tables if needed and returns a Store. The
// ingredients and users tables must already exist.
func NewStore(db *sqlx.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS recipes (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		instructions TEXT NOT NULL DEFAULT '',
		tags JSONB NOT NULL DEFAULT '[]',
		total_rating INTEGER NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS recipe_ingredients (
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		ingredient_id BIGINT NOT NULL REFERENCES ingredients(id),
		quantity TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (recipe_id, ingredient_id)
	);

	CREATE TABLE IF NOT EXISTS user_recipe_ratings (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		PRIMARY KEY (user_id, recipe_id)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create recipe tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Create persists a recipe and its ingredient links in one transaction.
// Ingredients are resolved by normalized name, creating them on first
// reference. Any failure rolls the whole creation back.
func (s *Store) Create(ctx context.Context, d Draft) (*Recipe, error) {
	tagsJSON, err := json.Marshal(tagsOrEmpty(d.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO recipes (title, description, instructions, tags) VALUES ($1, $2, $3, $4) RETURNING id",
		d.Title, d.Description, d.Instructions, tagsJSON).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}

	links := make([]RecipeIngredient, 0, len(d.Ingredients))
	for _, di := range d.Ingredients {
		ing, err := ingredient.Resolve(ctx, tx, di.Name, nil)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (recipe_id, ingredient_id) DO UPDATE SET quantity = $3`,
			id, ing.ID, di.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to link ingredient %q: %w", di.Name, err)
		}
		links = append(links, RecipeIngredient{IngredientID: ing.ID, Name: ing.Name, Quantity: di.Quantity})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recipe: %w", err)
	}

	return &Recipe{
		ID:           id,
		Title:        d.Title,
		Description:  d.Description,
		Instructions: d.Instructions,
		Tags:         tagsOrEmpty(d.Tags),
		Ingredients:  links,
	}, nil
}

// Get returns one recipe with its ingredient links, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Recipe, error) {
	r, err := scanRecipe(s.db.QueryRowxContext(ctx, selectColumns+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	links, err := s.ingredientsFor(ctx, []int64{r.ID})
	if err != nil {
		return nil, err
	}
	r.Ingredients = links[r.ID]
	return r, nil
}

// ByIDs returns the recipes for the given id set, with ingredient links, in
// unspecified order. Unknown ids are skipped.
func (s *Store) ByIDs(ctx context.Context, ids []int64) ([]*Recipe, error) {
	if len(ids) == 0 {
		return []*Recipe{}, nil
	}

	rows, err := s.db.QueryxContext(ctx, selectColumns+" WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes: %w", err)
	}
	defer rows.Close()

	return s.collect(ctx, rows)
}

// List returns recipes matching the filter. Rating filtering and ordering run
// in SQL; the tag subset test is applied afterwards, case-insensitively.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*Recipe, error) {
	query := "SELECT * FROM (" + selectColumns + ") r WHERE 1=1"
	var args []interface{}
	if f.MinRating != nil {
		args = append(args, *f.MinRating)
		query += fmt.Sprintf(" AND average_rating >= $%d", len(args))
	}
	switch f.Sort {
	case SortRatingAsc:
		query += " ORDER BY average_rating ASC, id"
	case SortRatingDesc:
		query += " ORDER BY average_rating DESC, id"
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		if !r.HasTags(f.Tags) {
			continue
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := s.attachIngredients(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// Delete removes a recipe. Its ingredient links and ratings cascade; shared
// ingredients are untouched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Rate inserts or updates the user's rating for a recipe and adjusts the
// cached aggregate in the same transaction. The recipe row is locked so
// concurrent read-modify-writes of the counters serialize.
func (s *Store) Rate(ctx context.Context, userID, recipeID int64, rating int) (*Recipe, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var totalRating, ratingCount int
	err = tx.QueryRowContext(ctx,
		"SELECT total_rating, rating_count FROM recipes WHERE id = $1 FOR UPDATE", recipeID).
		Scan(&totalRating, &ratingCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock recipe: %w", err)
	}

	var oldRating int
	err = tx.QueryRowContext(ctx,
		"SELECT rating FROM user_recipe_ratings WHERE user_id = $1 AND recipe_id = $2",
		userID, recipeID).Scan(&oldRating)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_recipe_ratings (user_id, recipe_id, rating) VALUES ($1, $2, $3)",
			userID, recipeID, rating); err != nil {
			return nil, fmt.Errorf("failed to insert rating: %w", err)
		}
		totalRating += rating
		ratingCount++
	case err != nil:
		return nil, fmt.Errorf("failed to get existing rating: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			"UPDATE user_recipe_ratings SET rating = $3 WHERE user_id = $1 AND recipe_id = $2",
			userID, recipeID, rating); err != nil {
			return nil, fmt.Errorf("failed to update rating: %w", err)
		}
		totalRating += rating - oldRating
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE recipes SET total_rating = $2, rating_count = $3 WHERE id = $1",
		recipeID, totalRating, ratingCount); err != nil {
		return nil, fmt.Errorf("failed to update rating aggregate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rating: %w", err)
	}

	return s.Get(ctx, recipeID)
}

// Tags returns the distinct tag vocabulary across all recipes,
// case-insensitively de-duplicated and sorted. First-seen casing wins.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tags FROM recipes")
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	seen := map[string]string{}
	for rows.Next() {
		var tagsJSON []byte
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan tags: %w", err)
		}
		var tags []string
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		for _, t := range tags {
			key := strings.ToLower(strings.TrimSpace(t))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; !ok {
				seen[key] = strings.TrimSpace(t)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vocabulary := make([]string, 0, len(keys))
	for _, k := range keys {
		vocabulary = append(vocabulary, seen[k])
	}
	return vocabulary, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecipe(row rowScanner) (*Recipe, error) {
	var r Recipe
	var tagsJSON []byte
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.Instructions,
		&tagsJSON,
		&r.TotalRating,
		&r.RatingCount,
		&r.AverageRating,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tagsJSON, &r.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	r.Ingredients = []RecipeIngredient{}
	return &r, nil
}

func (s *Store) collect(ctx context.Context, rows *sqlx.Rows) ([]*Recipe, error) {
	recipes := []*Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if err := s.attachIngredients(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// attachIngredients batch-fetches the ingredient links for all given recipes
// by id set, avoiding a per-recipe query.
func (s *Store) attachIngredients(ctx context.Context, recipes []*Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}

	links, err := s.ingredientsFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range recipes {
		if l, ok := links[r.ID]; ok {
			r.Ingredients = l
		}
	}
	return nil
}

func (s *Store) ingredientsFor(ctx context.Context, recipeIDs []int64) (map[int64][]RecipeIngredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.recipe_id, ri.ingredient_id, i.name, ri.quantity
		FROM recipe_ingredients ri
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = ANY($1)
		ORDER BY i.name`, pq.Array(recipeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe ingredients: %w", err)
	}
	defer rows.Close()

	links := map[int64][]RecipeIngredient{}
	for rows.Next() {
		var recipeID int64
		var ri RecipeIngredient
		if err := rows.Scan(&recipeID, &ri.IngredientID, &ri.Name, &ri.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient link: %w", err)
		}
		links[recipeID] = append(links[recipeID], ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return links, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
