package database

import (
	"context"
	"database/sql"

	"github.com/shulehub/shule/core"
)

type wrappedDB struct {
	*sql.DB
}

var _ core.DB = (*wrappedDB)(nil) // interface compliance check

// Wrap adapts *sql.DB to core.DB so services can open transactions without
// depending on database/sql concretions.
func Wrap(db *sql.DB) core.DB {
	return &wrappedDB{DB: db}
}

func (db *wrappedDB) Begin() (core.DBTransactor, error) {
	return db.DB.Begin()
}

func (db *wrappedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return db.DB.BeginTx(ctx, opts)
}
