package user

// User is an account with its profile preferences. Password and Google
// subject id never appear in JSON responses.
type User struct {
	ID                  int64    `json:"id" db:"id"`
	Email               string   `json:"email" db:"email"`
	HashedPassword      *string  `json:"-" db:"hashed_password"`
	GoogleUserID        *string  `json:"-" db:"google_user_id"`
	HouseholdSize       int      `json:"household_size" db:"household_size"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	WeeklyBudget        *float64 `json:"weekly_budget,omitempty" db:"weekly_budget"`
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged;
// each present field is applied explicitly.
type ProfilePatch struct {
	HouseholdSize       *int      `json:"household_size"`
	DietaryRestrictions *[]string `json:"dietary_restrictions"`
	WeeklyBudget        *float64  `json:"weekly_budget"`
}

// PantryItem is one ingredient in a user's pantry.
type PantryItem struct {
	IngredientID int64   `json:"ingredient_id" db:"ingredient_id"`
	Name         string  `json:"name" db:"name"`
	Category     *string `json:"category,omitempty" db:"category"`
	IsStaple     bool    `json:"is_staple" db:"is_staple"`
}
