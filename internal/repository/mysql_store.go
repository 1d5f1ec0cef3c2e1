package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// MySQLStore implements Store on top of MySQL/InnoDB.  Lock-acquiring
// reads use SELECT ... FOR UPDATE; waits are bounded by the connection's
// innodb_lock_wait_timeout (see database.Open).
type MySQLStore struct {
	db *sqlx.DB
}

// NewMySQLStore returns a store bound to the provided connection pool.
func NewMySQLStore(db *sqlx.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying pool for maintenance commands.
func (s *MySQLStore) DB() *sqlx.DB { return s.db }

// WithTx runs fn inside a READ COMMITTED transaction.  Row locks taken by
// FOR UPDATE reads make the isolation level sufficient for slot claims.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	committed = true
	return nil
}

// sqlTx is the MySQL implementation of Tx.  Its methods are spread over
// the *_repository.go files by table.
type sqlTx struct {
	tx *sqlx.Tx
}

// in expands a query containing an IN (?) clause.
func (t *sqlTx) in(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return t.tx.Rebind(q), a, nil
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	return res, mapError(err)
}

// requireAffected turns a zero-row update into ErrNotFound.
func requireAffected(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
