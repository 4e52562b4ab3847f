package ingredient

import "time"

// Ingredient is a canonical ingredient. Names are unique up to case; Resolve
// normalizes before matching or creating.
type Ingredient struct {
	ID       int64   `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	Category *string `json:"category,omitempty" db:"category"`
	IsStaple bool    `json:"is_staple" db:"is_staple"`
}

// PriceRecord is one scraped price observation for an ingredient at a store.
type PriceRecord struct {
	ID             int64     `json:"id" db:"id"`
	IngredientID   int64     `json:"ingredient_id" db:"ingredient_id"`
	IngredientName string    `json:"ingredient_name" db:"ingredient_name"`
	Price          string    `json:"price" db:"price"`
	Store          string    `json:"store" db:"store"`
	DateRecorded   time.Time `json:"date_recorded" db:"date_recorded"`
}
