package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when registering an email that is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

const selectColumns = `
	SELECT id, email, hashed_password, google_user_id, household_size, dietary_restrictions, weekly_budget
	FROM users`

// Store provides user, saved-recipe and pantry persistence.
type Store struct {
	db *sqlx.DB
}

// NewStore creates the user tables if needed and returns a Store. The
// ingredients table must already exist; the saved-recipes table is created by
// the recipe store's schema run order in main.
func NewStore(db *sqlx.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		hashed_password TEXT,
		google_user_id TEXT UNIQUE,
		household_size INTEGER NOT NULL DEFAULT 1,
		dietary_restrictions JSONB NOT NULL DEFAULT '[]',
		weekly_budget NUMERIC
	);

	CREATE TABLE IF NOT EXISTS user_pantry (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		ingredient_id BIGINT NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, ingredient_id)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create user tables: %w", err)
	}
	return &Store{db: db}, nil
}

// EnsureSavedRecipesTable creates the saved-recipes link table. Split out
// because it references recipes, whose table is created by the recipe store.
func (s *Store) EnsureSavedRecipesTable() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_saved_recipes (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, recipe_id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create saved recipes table: %w", err)
	}
	return nil
}

// Create inserts a new user. Either a password hash or a Google subject id
// may be nil, but registration expects the former and Google sign-up the
// latter.
func (s *Store) Create(ctx context.Context, email string, hashedPassword, googleUserID *string) (*User, error) {
	var u User
	var restrictionsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, hashed_password, google_user_id)
		VALUES ($1, $2, $3)
		RETURNING id, email, hashed_password, google_user_id, household_size, dietary_restrictions, weekly_budget`,
		email, hashedPassword, googleUserID).
		Scan(&u.ID, &u.Email, &u.HashedPassword, &u.GoogleUserID, &u.HouseholdSize, &restrictionsJSON, &u.WeeklyBudget)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := json.Unmarshal(restrictionsJSON, &u.DietaryRestrictions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dietary restrictions: %w", err)
	}
	return &u, nil
}

// ByEmail returns the user with the given email, or ErrNotFound.
func (s *Store) ByEmail(ctx context.Context, email string) (*User, error) {
	return one(ctx, s.db, selectColumns+" WHERE email = $1", email)
}

// ByID returns the user with the given id, or ErrNotFound.
func (s *Store) ByID(ctx context.Context, id int64) (*User, error) {
	return one(ctx, s.db, selectColumns+" WHERE id = $1", id)
}

// AttachGoogleID records the Google subject id on an existing user, linking a
// local account to its Google identity on first Google login.
func (s *Store) AttachGoogleID(ctx context.Context, userID int64, googleUserID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET google_user_id = $2 WHERE id = $1", userID, googleUserID)
	if err != nil {
		return fmt.Errorf("failed to attach google id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies a partial profile update field by field in one
// transaction and returns the updated user. A failure on any field leaves the
// whole profile untouched.
func (s *Store) UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (*User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if patch.HouseholdSize != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET household_size = $2 WHERE id = $1", userID, *patch.HouseholdSize); err != nil {
			return nil, fmt.Errorf("failed to update household size: %w", err)
		}
	}
	if patch.DietaryRestrictions != nil {
		restrictionsJSON, err := json.Marshal(*patch.DietaryRestrictions)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal dietary restrictions: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET dietary_restrictions = $2 WHERE id = $1", userID, restrictionsJSON); err != nil {
			return nil, fmt.Errorf("failed to update dietary restrictions: %w", err)
		}
	}
	if patch.WeeklyBudget != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET weekly_budget = $2 WHERE id = $1", userID, *patch.WeeklyBudget); err != nil {
			return nil, fmt.Errorf("failed to update weekly budget: %w", err)
		}
	}

	u, err := one(ctx, tx, selectColumns+" WHERE id = $1", userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit profile update: %w", err)
	}
	return u, nil
}

// SaveRecipe links a recipe to the user's saved set. Saving twice is a no-op.
func (s *Store) SaveRecipe(ctx context.Context, userID, recipeID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_saved_recipes (user_id, recipe_id) VALUES ($1, $2)
		ON CONFLICT (user_id, recipe_id) DO NOTHING`, userID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

// UnsaveRecipe removes a recipe from the user's saved set.
func (s *Store) UnsaveRecipe(ctx context.Context, userID, recipeID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_saved_recipes WHERE user_id = $1 AND recipe_id = $2", userID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to unsave recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SavedRecipeIDs returns the ids of the user's saved recipes.
func (s *Store) SavedRecipeIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids,
		"SELECT recipe_id FROM user_saved_recipes WHERE user_id = $1 ORDER BY recipe_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved recipes: %w", err)
	}
	return ids, nil
}

// AddPantryItem links an ingredient to the user's pantry. Adding twice is a
// no-op.
func (s *Store) AddPantryItem(ctx context.Context, userID, ingredientID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_pantry (user_id, ingredient_id) VALUES ($1, $2)
		ON CONFLICT (user_id, ingredient_id) DO NOTHING`, userID, ingredientID)
	if err != nil {
		return fmt.Errorf("failed to add pantry item: %w", err)
	}
	return nil
}

// RemovePantryItem unlinks an ingredient from the user's pantry.
func (s *Store) RemovePantryItem(ctx context.Context, userID, ingredientID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_pantry WHERE user_id = $1 AND ingredient_id = $2", userID, ingredientID)
	if err != nil {
		return fmt.Errorf("failed to remove pantry item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Pantry returns the user's pantry ingredients via an explicit join.
func (s *Store) Pantry(ctx context.Context, userID int64) ([]PantryItem, error) {
	items := []PantryItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT i.id AS ingredient_id, i.name, i.category, i.is_staple
		FROM user_pantry up
		JOIN ingredients i ON i.id = up.ingredient_id
		WHERE up.user_id = $1
		ORDER BY i.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pantry: %w", err)
	}
	return items, nil
}

// one runs a single-row user query. The runner may be the pool or an open
// transaction.
func one(ctx context.Context, q sqlx.QueryerContext, query string, arg interface{}) (*User, error) {
	var u User
	var restrictionsJSON []byte
	err := q.QueryRowxContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.HashedPassword, &u.GoogleUserID, &u.HouseholdSize, &restrictionsJSON, &u.WeeklyBudget)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := json.Unmarshal(restrictionsJSON, &u.DietaryRestrictions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dietary restrictions: %w", err)
	}
	return &u, nil
}
