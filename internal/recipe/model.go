package recipe

import (
	"encoding/json"
	"math"
	"strings"
)

// Recipe is a persisted recipe with its cached rating aggregate. The average
// is always derived from total_rating/rating_count, never stored.
type Recipe struct {
	ID            int64              `json:"id" db:"id"`
	Title         string             `json:"title" db:"title"`
	Description   string             `json:"description" db:"description"`
	Instructions  string             `json:"instructions" db:"instructions"`
	Tags          []string           `json:"tags"`
	TotalRating   int                `json:"-" db:"total_rating"`
	RatingCount   int                `json:"rating_count" db:"rating_count"`
	AverageRating float64            `json:"average_rating" db:"average_rating"`
	Ingredients   []RecipeIngredient `json:"ingredients"`
}

// RecipeIngredient is one resolved ingredient link with its per-recipe quantity.
type RecipeIngredient struct {
	IngredientID int64  `json:"ingredient_id" db:"ingredient_id"`
	Name         string `json:"name" db:"name"`
	Quantity     string `json:"quantity" db:"quantity"`
}

// HasTags reports whether every required tag is present in the recipe's tag
// set, compared case-insensitively.
func (r *Recipe) HasTags(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(r.Tags))
	for _, t := range r.Tags {
		have[strings.ToLower(strings.TrimSpace(t))] = true
	}
	for _, t := range required {
		if !have[strings.ToLower(strings.TrimSpace(t))] {
			return false
		}
	}
	return true
}

// Average computes the exposed rating average: round(total/count, 1), or 0
// when there are no ratings.
func Average(totalRating, ratingCount int) float64 {
	if ratingCount == 0 {
		return 0
	}
	return math.Round(float64(totalRating)/float64(ratingCount)*10) / 10
}

// Draft is a recipe payload that has not been persisted yet: direct API
// creations and generated recipes share this shape.
type Draft struct {
	Title        string            `json:"title" binding:"required"`
	Description  string            `json:"description"`
	Instructions string            `json:"instructions"`
	Tags         []string          `json:"tags"`
	Ingredients  []DraftIngredient `json:"ingredients"`
}

// DraftIngredient pairs an ingredient name with its free-text quantity.
type DraftIngredient struct {
	Name     string `json:"name" binding:"required"`
	Quantity string `json:"quantity"`
}

// UnmarshalJSON accepts instructions either as a single string or as an array
// of steps, which generation models return interchangeably. Steps are joined
// with newlines.
func (d *Draft) UnmarshalJSON(data []byte) error {
	type Alias Draft
	aux := &struct {
		Instructions json.RawMessage `json:"instructions"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Instructions) > 0 {
		var asString string
		if err := json.Unmarshal(aux.Instructions, &asString); err == nil {
			d.Instructions = asString
			return nil
		}
		var asSteps []string
		if err := json.Unmarshal(aux.Instructions, &asSteps); err != nil {
			return err
		}
		d.Instructions = strings.Join(asSteps, "\n")
	}

	return nil
}

// ListFilter narrows and orders a recipe listing.
type ListFilter struct {
	MinRating *float64
	Sort      string
	Tags      []string
}

// Sort values accepted by List.
const (
	SortRatingAsc  = "rating_asc"
	SortRatingDesc = "rating_desc"
)
