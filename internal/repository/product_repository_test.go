package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/url"
	"regexp"
	"testing"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/query"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productRowColumns = []string{"id", "name", "description", "category", "price", "stock", "image_url", "is_available", "owner_id", "created_at", "updated_at"}

func productRow(p *domain.Product) *sqlmock.Rows {
	return sqlmock.NewRows(productRowColumns).AddRow(
		p.ID.String(), p.Name, p.Description, string(p.Category), p.Price.String(), p.Stock,
		p.ImageURL, p.IsAvailable, p.OwnerID.String(), p.CreatedAt, p.UpdatedAt,
	)
}

func sampleProduct() *domain.Product {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Product{
		ID:          uuid.New(),
		Name:        "Widget",
		Description: "A small widget",
		Category:    domain.CategoryElectronics,
		Price:       decimal.RequireFromString("9.99"),
		Stock:       5,
		IsAvailable: true,
		OwnerID:     uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestProductRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	p := sampleProduct()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs(p.ID, p.Name, p.Description, p.Category, p.Price, p.Stock, p.ImageURL, p.IsAvailable, p.OwnerID, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryFindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	p := sampleProduct()

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(p.ID).
		WillReturnRows(productRow(p))

	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.Price.Equal(got.Price))
	assert.Equal(t, domain.CategoryElectronics, got.Category)
	assert.Equal(t, p.OwnerID, got.OwnerID)
}

func TestProductRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("FROM products").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepositoryFindByIDForUpdateLocksRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	p := sampleProduct()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
		WithArgs(p.ID).
		WillReturnRows(productRow(p))

	_, err := repo.FindByIDForUpdate(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryUpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), sampleProduct())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepositoryDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM products WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec("DELETE FROM products").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrProductNotFound)
}

func TestProductRepositoryAdjustStock(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	p := sampleProduct()
	p.Stock = 2

	mock.ExpectQuery(regexp.QuoteMeta("SET stock = (stock::bigint + $2::bigint)::integer")).
		WithArgs(p.ID, int64(-3), int64(math.MaxInt32)).
		WillReturnRows(productRow(p))

	got, err := repo.AdjustStock(context.Background(), p.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestProductRepositoryAdjustStockInsufficient(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	id := uuid.New()

	mock.ExpectQuery("UPDATE products").WillReturnRows(sqlmock.NewRows(productRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(5))

	_, err := repo.AdjustStock(context.Background(), id, -10)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryAdjustStockOverflow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("BETWEEN 0 AND $3")).
		WithArgs(id, int64(10), int64(math.MaxInt32)).
		WillReturnRows(sqlmock.NewRows(productRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(math.MaxInt32 - 5))

	_, err := repo.AdjustStock(context.Background(), id, 10)
	assert.ErrorIs(t, err, ErrStockOverflow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryAdjustStockMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("UPDATE products").WillReturnRows(sqlmock.NewRows(productRowColumns))
	mock.ExpectQuery("SELECT stock").WillReturnRows(sqlmock.NewRows([]string{"stock"}))

	_, err := repo.AdjustStock(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepositoryListBuildsFilteredQuery(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	p := sampleProduct()

	q := query.ParseListQuery(url.Values{
		"search":        {"50%_off"},
		"category":      {"electronics"},
		"min_price":     {"1"},
		"in_stock_only": {"1"},
		"sort":          {"-price"},
		"page_size":     {"5"},
	}, nil, query.DefaultLimits())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products WHERE (name ILIKE $1 OR category ILIKE $1 OR description ILIKE $1) AND LOWER(category) = $2 AND price >= $3 AND stock > 0")).
		WithArgs(`%50\%\_off%`, "electronics", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY price DESC, id ASC LIMIT $4 OFFSET $5")).
		WithArgs(`%50\%\_off%`, "electronics", sqlmock.AnyArg(), 5, 0).
		WillReturnRows(productRow(p))

	items, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryListSkipsQueryPastLastPage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	q := query.ParseListQuery(url.Values{"page": {"4"}}, nil, query.DefaultLimits())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	items, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryListHugePageIsEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	q := query.ParseListQuery(url.Values{"page": {"100000000000000000"}, "page_size": {"100"}}, nil, query.DefaultLimits())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	items, total, err := repo.List(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryListCountError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	_, _, err := repo.List(context.Background(), query.ListQuery{Page: 1, PageSize: 10, Sort: query.DefaultSort})
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\d`, escapeLike(`c:\d`))
}
