package database

import (
	"context"
	"database/sql"
	"fmt"

	"sobytnik/internal/domain"
)

// Tx оборачивает sql.Tx под контракт domain.Tx: Close идемпотентен
// и откатывает транзакцию, если коммита не было.
type Tx struct {
	tx        *sql.Tx
	committed bool
	closed    bool
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	t.committed = true
	return nil
}

func (t *Tx) Close() error {
	if t.closed || t.committed {
		t.closed = true
		return nil
	}
	t.closed = true
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Begin открывает транзакцию хранилища.
func (db *DB) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// sqlTx достает *sql.Tx из domain.Tx, переданного сервисом обратно в хранилище.
func sqlTx(tx domain.Tx) (*sql.Tx, error) {
	wrapped, ok := tx.(*Tx)
	if !ok || wrapped.tx == nil {
		return nil, fmt.Errorf("transaction does not belong to this store")
	}
	return wrapped.tx, nil
}
