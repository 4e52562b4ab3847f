package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"mealdeal/internal/ingredient"
	"mealdeal/internal/logger"
	"mealdeal/internal/recipe"
	"mealdeal/internal/user"
)

// Client is a client for the Gemini API.
type Client struct {
	model *genai.GenerativeModel
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{model: client.GenerativeModel("gemini-1.5-flash")}, nil
}

// GenerateRecipes builds a prompt from the current specials, the user's
// preferences and their pantry, and parses the model's JSON reply into recipe
// drafts. Transport failures and malformed output are logged and yield an
// empty slice; they never abort the caller's request.
func (c *Client) GenerateRecipes(ctx context.Context, specials []ingredient.PriceRecord, u *user.User, pantry []user.PantryItem) []recipe.Draft {
	prompt := buildGenerationPrompt(specials, u, pantry)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		logger.Warn("recipe generation call failed", zap.Error(err))
		return []recipe.Draft{}
	}

	text, err := responseText(resp)
	if err != nil {
		logger.Warn("recipe generation returned no text", zap.Error(err))
		return []recipe.Draft{}
	}

	return parseRecipeList(text)
}

// ModifyRecipe sends one existing recipe plus a free-text instruction and
// returns a single replacement recipe in the same shape.
func (c *Client) ModifyRecipe(ctx context.Context, original recipe.Draft, instruction string) (*recipe.Draft, error) {
	prompt := buildModificationPrompt(original, instruction)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("modification call failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	cleaned, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var d recipe.Draft
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal modified recipe: %w", err)
	}
	return &d, nil
}

func buildGenerationPrompt(specials []ingredient.PriceRecord, u *user.User, pantry []user.PantryItem) string {
	specialLines := make([]string, 0, len(specials))
	for _, s := range specials {
		specialLines = append(specialLines, fmt.Sprintf("%s at %s for %s", s.IngredientName, s.Store, s.Price))
	}
	specialsStr := strings.Join(specialLines, ", ")

	pantryStr := "empty"
	if len(pantry) > 0 {
		names := make([]string, 0, len(pantry))
		for _, p := range pantry {
			names = append(names, p.Name)
		}
		pantryStr = strings.Join(names, ", ")
	}

	restrictions := "none"
	if len(u.DietaryRestrictions) > 0 {
		restrictions = strings.Join(u.DietaryRestrictions, ", ")
	}

	var b strings.Builder
	b.WriteString("You are a creative chef specializing in budget-friendly meals. Based on the following supermarket specials, user preferences, and pantry items, generate 3 unique dinner recipes.\n\n")
	fmt.Fprintf(&b, "Supermarket specials: %s\n", specialsStr)
	fmt.Fprintf(&b, "User preferences: household size %d, dietary restrictions: %s\n", u.HouseholdSize, restrictions)
	fmt.Fprintf(&b, "User's pantry contains: %s\n\n", pantryStr)
	if len(u.DietaryRestrictions) > 0 {
		fmt.Fprintf(&b, "Every recipe MUST satisfy these dietary restrictions: %s.\n\n", restrictions)
	}
	b.WriteString("Respond with a single, clean JSON object with one key, 'recipes', holding an array of 3 recipe objects. ")
	b.WriteString("Each recipe object must have the keys 'title' (string), 'description' (string), 'instructions' (string, steps separated by newlines), 'ingredients' (array of objects with 'name' and 'quantity' string keys, e.g. {\"name\": \"Chicken Breast\", \"quantity\": \"500g\"}), and 'tags' (array of 3-5 descriptive strings). ")
	b.WriteString("The JSON response should be clean and not contain any markdown formatting (e.g., ```json).")
	return b.String()
}

func buildModificationPrompt(original recipe.Draft, instruction string) string {
	ingredientLines := make([]string, 0, len(original.Ingredients))
	for _, ing := range original.Ingredients {
		ingredientLines = append(ingredientLines, fmt.Sprintf("- %s %s", ing.Quantity, ing.Name))
	}

	var b strings.Builder
	b.WriteString("You are a helpful cooking assistant. A user wants to modify an existing recipe. Take the original recipe and the user's request, and generate a NEW, complete recipe that incorporates the changes.\n\n")
	fmt.Fprintf(&b, "User's request: %q\n\n", instruction)
	b.WriteString("Original recipe:\n")
	fmt.Fprintf(&b, "Title: %s\n", original.Title)
	fmt.Fprintf(&b, "Description: %s\n", original.Description)
	fmt.Fprintf(&b, "Ingredients:\n%s\n", strings.Join(ingredientLines, "\n"))
	fmt.Fprintf(&b, "Instructions: %s\n\n", original.Instructions)
	b.WriteString("Respond with a single, clean JSON object with the keys 'title', 'description', 'instructions', 'ingredients', and 'tags'. ")
	b.WriteString("'ingredients' must be an array of objects with 'name' and 'quantity' keys; 'quantity' MUST be a string that includes the unit (e.g. \"1 cup\", \"200g\", \"2 cloves\"). ")
	b.WriteString("Ensure the new title reflects the modification. Do not include any text or formatting outside of the JSON object.")
	return b.String()
}

// parseRecipeList parses LLM output into recipe drafts. The documented
// contract is an object with a 'recipes' array, but replies wrapped under a
// different key or returned as a bare array are accepted as a compatibility
// shim. Anything unparsable yields an empty slice.
func parseRecipeList(text string) []recipe.Draft {
	cleaned := stripMarkdownFences(text)

	var wrapped struct {
		Recipes []recipe.Draft `json:"recipes"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && wrapped.Recipes != nil {
		return wrapped.Recipes
	}

	var bare []recipe.Draft
	if err := json.Unmarshal([]byte(cleaned), &bare); err == nil {
		return bare
	}

	// Shim: accept the first list-valued key of an arbitrary wrapper object.
	var generic map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &generic); err == nil {
		for _, raw := range generic {
			var drafts []recipe.Draft
			if err := json.Unmarshal(raw, &drafts); err == nil {
				return drafts
			}
		}
		logger.Warn("generation reply was valid JSON but held no recipe list")
		return []recipe.Draft{}
	}

	logger.Warn("generation reply was not valid JSON", zap.String("reply_prefix", prefix(cleaned, 120)))
	return []recipe.Draft{}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return string(text), nil
}

// extractJSONObject pulls the outermost JSON object out of a reply that may be
// wrapped in markdown.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start > end {
		return "", fmt.Errorf("could not find JSON object in response")
	}
	return text[start : end+1], nil
}

func stripMarkdownFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
