package ingredient

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestResolve_ExistingIngredient(t *testing.T) {
	s, mock := newMockStore(t)

	// Lookup matches regardless of casing; no insert happens.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("red lentils").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "is_staple"}).
			AddRow(9, "Red Lentils", nil, false))

	ing, err := s.Resolve(context.Background(), "  red lentils  ", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(9), ing.ID)
	assert.Equal(t, "Red Lentils", ing.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_CreatesOnMiss(t *testing.T) {
	s, mock := newMockStore(t)

	category := "Herbs"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("Basil").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (LOWER(name)) DO UPDATE SET name = ingredients.name")).
		WithArgs("Basil", category).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "is_staple"}).
			AddRow(1, "Basil", category, false))

	ing, err := s.Resolve(context.Background(), "Basil", &category)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), ing.ID)
	assert.NotNil(t, ing.Category)
	assert.Equal(t, "Herbs", *ing.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_ConcurrentCreate(t *testing.T) {
	s, mock := newMockStore(t)

	// Another writer creates the ingredient between the lookup and the
	// insert; the conflict clause hands back their row.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("Basil").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (LOWER(name)) DO UPDATE SET name = ingredients.name")).
		WithArgs("Basil", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "is_staple"}).
			AddRow(7, "basil", nil, false))

	ing, err := s.Resolve(context.Background(), "Basil", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), ing.ID)
	assert.Equal(t, "basil", ing.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_BackfillsCategory(t *testing.T) {
	s, mock := newMockStore(t)

	// The ingredient exists without a category; a provided one is recorded.
	category := "Herbs"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("Basil").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "is_staple"}).
			AddRow(1, "Basil", nil, false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ingredients SET category = $1 WHERE id = $2")).
		WithArgs(category, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ing, err := s.Resolve(context.Background(), "Basil", &category)
	assert.NoError(t, err)
	assert.NotNil(t, ing.Category)
	assert.Equal(t, "Herbs", *ing.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_KeepsExistingCategory(t *testing.T) {
	s, mock := newMockStore(t)

	existing := "Pantry"
	other := "Herbs"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("Basil").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "is_staple"}).
			AddRow(1, "Basil", existing, false))

	// No UPDATE is expected: an already-set category wins.
	ing, err := s.Resolve(context.Background(), "Basil", &other)
	assert.NoError(t, err)
	assert.Equal(t, "Pantry", *ing.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPrice(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("Chicken Breast").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "is_staple"}).
			AddRow(3, "Chicken Breast", nil, false))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO price_history (ingredient_id, price, store)")).
		WithArgs(int64(3), "$5.50", "Coles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "ingredient_id", "price", "store", "date_recorded"}).
			AddRow(11, 3, "$5.50", "Coles", time.Now()))

	rec, err := s.RecordPrice(context.Background(), "Chicken Breast", "$5.50", "Coles")
	assert.NoError(t, err)
	assert.Equal(t, int64(11), rec.ID)
	assert.Equal(t, "Chicken Breast", rec.IngredientName)
	assert.Equal(t, "$5.50", rec.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePrice_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM price_history WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeletePrice(context.Background(), 99), ErrNotFound)
}

func TestDeleteTodayPrices(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM price_history WHERE date_recorded = CURRENT_DATE")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteTodayPrices(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
