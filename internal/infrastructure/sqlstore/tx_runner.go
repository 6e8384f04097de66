package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// errCommit marca fallos de Commit para distinguirlos de los de las sentencias.
var errCommit = errors.New("commit transaction")

// TxRunner ejecuta callbacks dentro de una transacción.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner construye el runner con la conexión.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// Run inicia una transacción, ejecuta fn y hace Commit; ante cualquier error hace Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", errCommit, err)
	}
	return nil
}
