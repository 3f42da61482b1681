package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"stockroom/internal/database"
	"stockroom/internal/domain"
	"stockroom/internal/query"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("stock cannot be negative")
	ErrStockOverflow     = errors.New("stock exceeds column range")
	ErrOwnerNotFound     = errors.New("product owner does not exist")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// AdjustStock adds delta to stock in a single statement and returns the updated row.
	// It fails with ErrInsufficientStock, leaving the row untouched, if the result would be negative,
	// and with ErrStockOverflow if it would not fit the INTEGER column.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
	List(ctx context.Context, q query.ListQuery) ([]*domain.Product, int, error)
	WithTx(tx DBTX) ProductRepository
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx DBTX) ProductRepository {
	return &productRepository{db: tx}
}

const productColumns = `id, name, description, category, price, stock, COALESCE(image_url, ''), is_available, owner_id, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.Price,
		&product.Stock,
		&product.ImageURL,
		&product.IsAvailable,
		&product.OwnerID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, description, category, price, stock, image_url, is_available, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.Stock,
		product.ImageURL,
		product.IsAvailable,
		product.OwnerID,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update writes every mutable column of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, price = $5,
		    stock = $6, image_url = NULLIF($7, ''), is_available = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.Stock,
		product.ImageURL,
		product.IsAvailable,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product permanently
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *productRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	// bigint arithmetic so the guard itself cannot overflow
	query := `
		UPDATE products
		SET stock = (stock::bigint + $2::bigint)::integer, updated_at = NOW()
		WHERE id = $1 AND stock::bigint + $2::bigint BETWEEN 0 AND $3
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, int64(delta), int64(math.MaxInt32)))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	// no row matched: either the product is gone or the guard rejected the delta
	var stock int64
	if err := r.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to read current stock: %w", err)
	}
	if stock+int64(delta) > math.MaxInt32 {
		return nil, ErrStockOverflow
	}
	return nil, ErrInsufficientStock
}

// List returns one page of products matching q plus the total match count
func (r *productRepository) List(ctx context.Context, q query.ListQuery) ([]*domain.Product, int, error) {
	whereClause, args := buildProductFilter(q)

	countQuery := "SELECT COUNT(*) FROM products" + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	products := []*domain.Product{}
	if total == 0 || q.Offset() >= total {
		return products, total, nil
	}

	// column and direction come from the sort allow-list, never from raw input
	listQuery := fmt.Sprintf(
		"SELECT %s FROM products%s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d",
		productColumns, whereClause, q.Sort.Column(), q.Sort.Direction(), len(args)+1, len(args)+2,
	)
	args = append(args, q.PageSize, q.Offset())

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

func buildProductFilter(q query.ListQuery) (string, []any) {
	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Search != "" {
		p := arg("%" + escapeLike(q.Search) + "%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE %s OR category ILIKE %s OR description ILIKE %s)", p, p, p))
	}
	if q.Category != "" {
		conditions = append(conditions, "LOWER(category) = "+arg(q.Category))
	}
	if q.MinPrice != nil {
		conditions = append(conditions, "price >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		conditions = append(conditions, "price <= "+arg(*q.MaxPrice))
	}
	if q.InStockOnly {
		conditions = append(conditions, "stock > 0")
	}
	if q.Available != nil {
		conditions = append(conditions, "is_available = "+arg(*q.Available))
	}
	if q.OwnerID != nil {
		conditions = append(conditions, "owner_id = "+arg(*q.OwnerID))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
