package dbkit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/dbkit/query/dialect"
)

// TxFunc runs inside a transaction. tx runs every operation on the
// transaction's connection.
type TxFunc func(tx *DB) error

type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Transaction runs fn in a transaction. It commits when fn returns nil and
// rolls back on error or panic. Calling Transaction on a transaction-bound
// DB nests through a savepoint.
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	return db.TransactionWithOptions(ctx, nil, fn)
}

// ReadOnlyTransaction runs fn in a read-only transaction.
func (db *DB) ReadOnlyTransaction(ctx context.Context, fn TxFunc) error {
	return db.TransactionWithOptions(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// TransactionWithOptions is Transaction with isolation and read-only options.
func (db *DB) TransactionWithOptions(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error {
	if tx, ok := db.conn.(*sql.Tx); ok {
		return db.savepoint(ctx, tx, fn)
	}
	b, ok := db.conn.(beginner)
	if !ok {
		return ErrTransactionsUnsupported
	}

	sqlTx, err := b.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	db.logger.DebugContext(ctx, "Transaction started")

	// Defer rollback in case of panic
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(db.with(sqlTx, 0)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		db.logger.DebugContext(ctx, "Transaction rolled back", "error", err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	db.logger.DebugContext(ctx, "Transaction committed")
	return nil
}

// savepoint runs fn as a nested transaction inside tx.
func (db *DB) savepoint(ctx context.Context, tx *sql.Tx, fn TxFunc) error {
	depth := db.depth + 1
	name := fmt.Sprintf("sp_%d", depth)
	create, rollback, release := db.savepointStatements(name)

	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	// Roll back to the savepoint in case of panic
	defer func() {
		if p := recover(); p != nil {
			_, _ = tx.ExecContext(ctx, rollback)
			panic(p)
		}
	}()

	if err := fn(db.with(tx, depth)); err != nil {
		if _, rbErr := tx.ExecContext(ctx, rollback); rbErr != nil {
			return fmt.Errorf("nested transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if release == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, release); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// savepointStatements returns the create, rollback and release statements.
// SQL Server has no release.
func (db *DB) savepointStatements(name string) (create, rollback, release string) {
	if db.dialect.Name() == dialect.SQLServer {
		return "SAVE TRANSACTION " + name, "ROLLBACK TRANSACTION " + name, ""
	}
	return "SAVEPOINT " + name, "ROLLBACK TO SAVEPOINT " + name, "RELEASE SAVEPOINT " + name
}
