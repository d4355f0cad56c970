package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Tx runs fn inside a database transaction, committing on success and
// rolling back when fn returns an error or panics.
func Tx(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = errors.Errorf("transaction panicked with: %v", r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rollbackErr)
		}

		return err
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}
