package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// TxOptions configures a transaction
type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
}

// DefaultTxOptions is read committed, read-write
var DefaultTxOptions = TxOptions{IsolationLevel: sql.LevelReadCommitted}

// WithTransaction runs fn inside a transaction, committing when fn returns nil
// and rolling back otherwise. Failures are never retried.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate key error
func IsUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}

// IsForeignKeyViolation reports a missing referenced row
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == foreignKeyViolation
}

// IsCheckViolation reports a failed CHECK constraint
func IsCheckViolation(err error) bool {
	return pgCode(err) == checkViolation
}
