package repository

import (
	"context"
	"database/sql"
)

// Tx is the slice of database/sql transaction behavior the repositories
// actually use. *sql.Tx satisfies it.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Commit() error
	Rollback() error
}

// TxBeginner starts transactions for the service layer.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

type sqlTxBeginner struct {
	db *sql.DB
}

// NewSQLTxBeginner wraps a *sql.DB as a TxBeginner.
func NewSQLTxBeginner(db *sql.DB) TxBeginner {
	return &sqlTxBeginner{db: db}
}

func (b *sqlTxBeginner) Begin(ctx context.Context) (Tx, error) {
	return b.db.BeginTx(ctx, nil)
}
