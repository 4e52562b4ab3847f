package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"mealdeal/internal/auth"
	"mealdeal/internal/ingredient"
	"mealdeal/internal/recipe"
	"mealdeal/internal/user"
)

var testSecret = []byte("test-secret")

// mockRecipeStore is an in-memory mock of the RecipeStore.
type mockRecipeStore struct {
	recipes   map[int64]*recipe.Recipe
	ratings   map[string]int
	nextID    int64
	createErr       error
	createFailTitle string
	listErr         error
	rateErr         error

	receivedFilter recipe.ListFilter
	tagVocabulary  []string
}

func newMockRecipeStore() *mockRecipeStore {
	return &mockRecipeStore{recipes: map[int64]*recipe.Recipe{}, ratings: map[string]int{}}
}

func (m *mockRecipeStore) add(r *recipe.Recipe) *recipe.Recipe {
	m.nextID++
	r.ID = m.nextID
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Ingredients == nil {
		r.Ingredients = []recipe.RecipeIngredient{}
	}
	m.recipes[r.ID] = r
	return r
}

func (m *mockRecipeStore) Create(ctx context.Context, d recipe.Draft) (*recipe.Recipe, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.createFailTitle != "" && d.Title == m.createFailTitle {
		return nil, errors.New("insert failed")
	}
	links := make([]recipe.RecipeIngredient, 0, len(d.Ingredients))
	for i, di := range d.Ingredients {
		links = append(links, recipe.RecipeIngredient{IngredientID: int64(i + 1), Name: di.Name, Quantity: di.Quantity})
	}
	return m.add(&recipe.Recipe{
		Title:        d.Title,
		Description:  d.Description,
		Instructions: d.Instructions,
		Tags:         d.Tags,
		Ingredients:  links,
	}), nil
}

func (m *mockRecipeStore) Get(ctx context.Context, id int64) (*recipe.Recipe, error) {
	r, ok := m.recipes[id]
	if !ok {
		return nil, recipe.ErrNotFound
	}
	return r, nil
}

func (m *mockRecipeStore) ByIDs(ctx context.Context, ids []int64) ([]*recipe.Recipe, error) {
	found := []*recipe.Recipe{}
	for _, id := range ids {
		if r, ok := m.recipes[id]; ok {
			found = append(found, r)
		}
	}
	return found, nil
}

func (m *mockRecipeStore) List(ctx context.Context, f recipe.ListFilter) ([]*recipe.Recipe, error) {
	m.receivedFilter = f
	if m.listErr != nil {
		return nil, m.listErr
	}
	matched := []*recipe.Recipe{}
	for _, r := range m.recipes {
		if f.MinRating != nil && r.AverageRating < *f.MinRating {
			continue
		}
		if !r.HasTags(f.Tags) {
			continue
		}
		matched = append(matched, r)
	}
	return matched, nil
}

func (m *mockRecipeStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.recipes[id]; !ok {
		return recipe.ErrNotFound
	}
	delete(m.recipes, id)
	return nil
}

func (m *mockRecipeStore) Rate(ctx context.Context, userID, recipeID int64, rating int) (*recipe.Recipe, error) {
	if m.rateErr != nil {
		return nil, m.rateErr
	}
	if rating < 1 || rating > 5 {
		return nil, recipe.ErrInvalidRating
	}
	r, ok := m.recipes[recipeID]
	if !ok {
		return nil, recipe.ErrNotFound
	}
	key := fmt.Sprintf("%d/%d", userID, recipeID)
	if old, rated := m.ratings[key]; rated {
		r.TotalRating += rating - old
	} else {
		r.TotalRating += rating
		r.RatingCount++
	}
	m.ratings[key] = rating
	r.AverageRating = recipe.Average(r.TotalRating, r.RatingCount)
	return r, nil
}

func (m *mockRecipeStore) Tags(ctx context.Context) ([]string, error) {
	return m.tagVocabulary, nil
}

// mockIngredientStore is an in-memory mock of the IngredientStore.
type mockIngredientStore struct {
	ingredients map[string]*ingredient.Ingredient
	prices      []ingredient.PriceRecord
	nextID      int64
	resolveErr  error
}

func newMockIngredientStore() *mockIngredientStore {
	return &mockIngredientStore{ingredients: map[string]*ingredient.Ingredient{}}
}

func (m *mockIngredientStore) Resolve(ctx context.Context, name string, category *string) (*ingredient.Ingredient, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	if ing, ok := m.ingredients[name]; ok {
		return ing, nil
	}
	m.nextID++
	ing := &ingredient.Ingredient{ID: m.nextID, Name: name, Category: category}
	m.ingredients[name] = ing
	return ing, nil
}

func (m *mockIngredientStore) Search(ctx context.Context, query string) ([]ingredient.Ingredient, error) {
	found := []ingredient.Ingredient{}
	for _, ing := range m.ingredients {
		found = append(found, *ing)
	}
	return found, nil
}

func (m *mockIngredientStore) Staples(ctx context.Context) ([]ingredient.Ingredient, error) {
	staples := []ingredient.Ingredient{}
	for _, ing := range m.ingredients {
		if ing.IsStaple {
			staples = append(staples, *ing)
		}
	}
	return staples, nil
}

func (m *mockIngredientStore) RecordPrice(ctx context.Context, ingredientName, price, store string) (*ingredient.PriceRecord, error) {
	ing, err := m.Resolve(ctx, ingredientName, nil)
	if err != nil {
		return nil, err
	}
	rec := ingredient.PriceRecord{
		ID:             int64(len(m.prices) + 1),
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		Price:          price,
		Store:          store,
	}
	m.prices = append(m.prices, rec)
	return &rec, nil
}

func (m *mockIngredientStore) TodayPrices(ctx context.Context) ([]ingredient.PriceRecord, error) {
	return m.prices, nil
}

func (m *mockIngredientStore) PriceHistory(ctx context.Context, ingredientID int64) ([]ingredient.PriceRecord, error) {
	history := []ingredient.PriceRecord{}
	for _, rec := range m.prices {
		if rec.IngredientID == ingredientID {
			history = append(history, rec)
		}
	}
	return history, nil
}

func (m *mockIngredientStore) DeletePrice(ctx context.Context, id int64) error {
	for i, rec := range m.prices {
		if rec.ID == id {
			m.prices = append(m.prices[:i], m.prices[i+1:]...)
			return nil
		}
	}
	return ingredient.ErrNotFound
}

func (m *mockIngredientStore) DeleteTodayPrices(ctx context.Context) (int64, error) {
	n := int64(len(m.prices))
	m.prices = nil
	return n, nil
}

// mockUserStore is an in-memory mock of the UserStore.
type mockUserStore struct {
	users   map[int64]*user.User
	byEmail map[string]*user.User
	saved   map[int64][]int64
	pantry  map[int64][]user.PantryItem
	nextID  int64
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:   map[int64]*user.User{},
		byEmail: map[string]*user.User{},
		saved:   map[int64][]int64{},
		pantry:  map[int64][]user.PantryItem{},
	}
}

func (m *mockUserStore) Create(ctx context.Context, email string, hashedPassword, googleUserID *string) (*user.User, error) {
	if _, ok := m.byEmail[email]; ok {
		return nil, user.ErrDuplicateEmail
	}
	m.nextID++
	u := &user.User{
		ID:                  m.nextID,
		Email:               email,
		HashedPassword:      hashedPassword,
		GoogleUserID:        googleUserID,
		HouseholdSize:       1,
		DietaryRestrictions: []string{},
	}
	m.users[u.ID] = u
	m.byEmail[email] = u
	return u, nil
}

func (m *mockUserStore) ByEmail(ctx context.Context, email string) (*user.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserStore) ByID(ctx context.Context, id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserStore) AttachGoogleID(ctx context.Context, userID int64, googleUserID string) error {
	u, ok := m.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.GoogleUserID = &googleUserID
	return nil
}

func (m *mockUserStore) UpdateProfile(ctx context.Context, userID int64, patch user.ProfilePatch) (*user.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	if patch.HouseholdSize != nil {
		u.HouseholdSize = *patch.HouseholdSize
	}
	if patch.DietaryRestrictions != nil {
		u.DietaryRestrictions = *patch.DietaryRestrictions
	}
	if patch.WeeklyBudget != nil {
		u.WeeklyBudget = patch.WeeklyBudget
	}
	return u, nil
}

func (m *mockUserStore) SaveRecipe(ctx context.Context, userID, recipeID int64) error {
	for _, id := range m.saved[userID] {
		if id == recipeID {
			return nil
		}
	}
	m.saved[userID] = append(m.saved[userID], recipeID)
	return nil
}

func (m *mockUserStore) UnsaveRecipe(ctx context.Context, userID, recipeID int64) error {
	for i, id := range m.saved[userID] {
		if id == recipeID {
			m.saved[userID] = append(m.saved[userID][:i], m.saved[userID][i+1:]...)
			return nil
		}
	}
	return user.ErrNotFound
}

func (m *mockUserStore) SavedRecipeIDs(ctx context.Context, userID int64) ([]int64, error) {
	return m.saved[userID], nil
}

func (m *mockUserStore) AddPantryItem(ctx context.Context, userID, ingredientID int64) error {
	for _, item := range m.pantry[userID] {
		if item.IngredientID == ingredientID {
			return nil
		}
	}
	m.pantry[userID] = append(m.pantry[userID], user.PantryItem{IngredientID: ingredientID})
	return nil
}

func (m *mockUserStore) RemovePantryItem(ctx context.Context, userID, ingredientID int64) error {
	for i, item := range m.pantry[userID] {
		if item.IngredientID == ingredientID {
			m.pantry[userID] = append(m.pantry[userID][:i], m.pantry[userID][i+1:]...)
			return nil
		}
	}
	return user.ErrNotFound
}

func (m *mockUserStore) Pantry(ctx context.Context, userID int64) ([]user.PantryItem, error) {
	return m.pantry[userID], nil
}

// mockGenerator is a mock of the Generator.
type mockGenerator struct {
	drafts       []recipe.Draft
	modifyResult *recipe.Draft
	modifyErr    error

	receivedInstruction string
}

func (m *mockGenerator) GenerateRecipes(ctx context.Context, specials []ingredient.PriceRecord, u *user.User, pantry []user.PantryItem) []recipe.Draft {
	return m.drafts
}

func (m *mockGenerator) ModifyRecipe(ctx context.Context, original recipe.Draft, instruction string) (*recipe.Draft, error) {
	m.receivedInstruction = instruction
	if m.modifyErr != nil {
		return nil, m.modifyErr
	}
	return m.modifyResult, nil
}

// mockVerifier is a mock of the GoogleVerifier.
type mockVerifier struct {
	identity *auth.GoogleIdentity
	err      error
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*auth.GoogleIdentity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.identity, nil
}

type fixture struct {
	handler     *Handler
	router      *gin.Engine
	recipes     *mockRecipeStore
	ingredients *mockIngredientStore
	users       *mockUserStore
	generator   *mockGenerator
	verifier    *mockVerifier
}

// newFixture wires a handler with fresh mocks into a router carrying the same
// route table as the server binary.
func newFixture() *fixture {
	gin.SetMode(gin.TestMode)

	f := &fixture{
		recipes:     newMockRecipeStore(),
		ingredients: newMockIngredientStore(),
		users:       newMockUserStore(),
		generator:   &mockGenerator{},
		verifier:    &mockVerifier{},
	}
	f.handler = NewHandler(f.recipes, f.ingredients, f.users, f.generator, f.verifier, testSecret)

	r := gin.New()
	authd := f.handler.RequireAuth()

	r.POST("/register", f.handler.Register)
	r.POST("/token", f.handler.Token)
	r.POST("/api/auth/google", f.handler.GoogleLogin)
	r.GET("/users/me", authd, f.handler.GetProfile)
	r.PUT("/users/me", authd, f.handler.UpdateProfile)

	r.GET("/api/recipes", f.handler.ListRecipes)
	r.POST("/api/recipes", authd, f.handler.CreateRecipe)
	r.GET("/api/recipes/:id", f.handler.GetRecipe)
	r.DELETE("/api/recipes/:id", authd, f.handler.DeleteRecipe)
	r.POST("/api/recipes/:id/rate", authd, f.handler.RateRecipe)
	r.POST("/api/recipes/:id", authd, f.handler.ModifyRecipe)
	r.POST("/api/generate-recipes", authd, f.handler.GenerateRecipes)
	r.GET("/api/tags", f.handler.GetTags)

	r.GET("/api/pantry", authd, f.handler.GetPantry)
	r.POST("/api/pantry", authd, f.handler.AddPantryItem)
	r.DELETE("/api/pantry/:ingredient_id", authd, f.handler.RemovePantryItem)

	r.GET("/api/users/me/saved-recipes", authd, f.handler.GetSavedRecipes)
	r.POST("/api/users/me/saved-recipes", authd, f.handler.SaveRecipe)
	r.DELETE("/api/users/me/saved-recipes/:recipe_id", authd, f.handler.UnsaveRecipe)

	r.GET("/api/ingredients/search", f.handler.SearchIngredients)
	r.GET("/api/ingredients/staples", f.handler.GetStaples)
	r.GET("/api/ingredient/:id/price-history", f.handler.GetIngredientPriceHistory)

	r.GET("/api/prices", f.handler.GetPrices)
	r.POST("/api/prices", f.handler.RecordPrice)
	r.DELETE("/api/prices/:id", f.handler.DeletePrice)

	f.router = r
	return f
}

// login creates a user directly in the store and returns it with a valid
// Authorization header value.
func (f *fixture) login(t *testing.T, email string) (*user.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	assert.NoError(t, err)

	u, err := f.users.Create(context.Background(), email, &hash, nil)
	assert.NoError(t, err)

	token, err := auth.GenerateToken(u.ID, u.Email, testSecret)
	assert.NoError(t, err)

	return u, "Bearer " + token
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}
