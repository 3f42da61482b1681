package repository

import (
	"context"
	"database/sql"

	"stockroom/internal/database"
)

// Stores are the repositories bound to one transaction
type Stores struct {
	Products ProductRepository
	Changes  ChangeRepository
}

// UnitOfWork runs a product mutation and its ledger entry atomically.
// If fn returns an error nothing it wrote is kept.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Stores) error) error
}

type sqlUnitOfWork struct {
	db       *sql.DB
	products ProductRepository
	changes  ChangeRepository
}

func NewUnitOfWork(db *sql.DB) UnitOfWork {
	return &sqlUnitOfWork{
		db:       db,
		products: NewProductRepository(db),
		changes:  NewChangeRepository(db),
	}
}

func (u *sqlUnitOfWork) Do(ctx context.Context, fn func(Stores) error) error {
	return database.WithTransaction(ctx, u.db, database.DefaultTxOptions, func(tx *sql.Tx) error {
		return fn(Stores{
			Products: u.products.WithTx(tx),
			Changes:  u.changes.WithTx(tx),
		})
	})
}
