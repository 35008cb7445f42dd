package storage

import (
	"context"
	"errors"
)

// ErrAlreadyInTx is returned when BeginTx is called on a repository that is
// already bound to a transaction.
var ErrAlreadyInTx = errors.New("repository already in transaction")

// TxCommitter finishes a unit of work started by a repository's BeginTx.
// Rollback after a successful Commit is a no-op.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
