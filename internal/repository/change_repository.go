package repository

import (
	"context"
	"fmt"
	"time"

	"stockroom/internal/domain"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ChangeRepository is the append-only product change ledger.
// Entries can be recorded and read; there is no way to edit or remove one.
type ChangeRepository interface {
	Record(ctx context.Context, entry *domain.ChangeEntry) error
	// History returns entries for a product, newest first
	History(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.ChangeEntry, error)
	// Recent returns the latest entries across all products, newest first
	Recent(ctx context.Context, limit int) ([]*domain.ChangeEntry, error)
	WithTx(tx DBTX) ChangeRepository
}

type changeRepository struct {
	db  DBTX
	now func() time.Time
}

// NewChangeRepository creates a new instance of ChangeRepository
func NewChangeRepository(db DBTX) ChangeRepository {
	return &changeRepository{db: db, now: time.Now}
}

func (r *changeRepository) WithTx(tx DBTX) ChangeRepository {
	return &changeRepository{db: tx, now: r.now}
}

// Record assigns the entry a time-ordered ID and timestamp, then inserts it
func (r *changeRepository) Record(ctx context.Context, entry *domain.ChangeEntry) error {
	if !entry.ChangeType.IsValid() {
		return fmt.Errorf("invalid change type %q", entry.ChangeType)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(entry.CreatedAt), ulid.DefaultEntropy()).String()
	}

	query := `
		INSERT INTO product_change_history (id, product_id, product_name, old_value, new_value, actor_id, change_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ProductID,
		entry.ProductName,
		entry.OldValue,
		entry.NewValue,
		entry.ActorID,
		entry.ChangeType,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record product change: %w", err)
	}

	return nil
}

const changeColumns = `id, product_id, product_name, old_value, new_value, actor_id, change_type, created_at`

func (r *changeRepository) History(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.ChangeEntry, error) {
	query := `SELECT ` + changeColumns + `
		FROM product_change_history
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	return r.list(ctx, query, productID, normalizeLimit(limit))
}

func (r *changeRepository) Recent(ctx context.Context, limit int) ([]*domain.ChangeEntry, error) {
	query := `SELECT ` + changeColumns + `
		FROM product_change_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	return r.list(ctx, query, normalizeLimit(limit))
}

func (r *changeRepository) list(ctx context.Context, query string, args ...any) ([]*domain.ChangeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list product changes: %w", err)
	}
	defer rows.Close()

	entries := []*domain.ChangeEntry{}
	for rows.Next() {
		entry := &domain.ChangeEntry{}
		var actor uuid.NullUUID
		if err := rows.Scan(
			&entry.ID,
			&entry.ProductID,
			&entry.ProductName,
			&entry.OldValue,
			&entry.NewValue,
			&actor,
			&entry.ChangeType,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product change: %w", err)
		}
		if actor.Valid {
			id := actor.UUID
			entry.ActorID = &id
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product changes: %w", err)
	}

	return entries, nil
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
