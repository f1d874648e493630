package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DB is the pool-level handle repositories are built on.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pick returns tx when set, otherwise the pool.
func pick(db DB, tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return db
}
