package accountmerge

import (
	"context"
	"database/sql"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Transaction is the handle returned by AccountStore.BeginTx. Rollback after Commit is a no-op.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AccountStore reads and removes accounts. Every method runs inside the transaction carried
// by ctx when there is one.
type AccountStore interface {
	// BeginTx opens a transaction with opts and returns a context carrying it. It fails
	// when ctx already carries a transaction, since the outer isolation level would win.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Transaction, error)
	// GetAccount returns nil, nil when the account does not exist
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	// LockAccount is GetAccount with a row lock held until the transaction ends
	LockAccount(ctx context.Context, id string) (*models.Account, error)
	// CreateAdminNote assigns an ID when the note has none
	CreateAdminNote(ctx context.Context, note *models.AdminNote) error
	// DeleteAccount returns the number of rows removed
	DeleteAccount(ctx context.Context, id string) (int64, error)
}

// RelationStore operates on the tables declared by models.RelationKind
type RelationStore interface {
	// ListRows returns rows whose account column equals accountID
	ListRows(ctx context.Context, kind models.RelationKind, accountID string) ([]models.RelationRow, error)
	// ListRowsByOther returns rows whose other column equals otherID
	ListRowsByOther(ctx context.Context, kind models.RelationKind, otherID string) ([]models.RelationRow, error)
	CountRows(ctx context.Context, kind models.RelationKind, accountID string) (int, error)
	// RepointRows sets column to "to" on the given row IDs
	RepointRows(ctx context.Context, kind models.RelationKind, column string, ids []string, to string) (int64, error)
	DeleteRows(ctx context.Context, kind models.RelationKind, ids []string) (int64, error)
	// Reattribute sets column from "from" to "to" on every row of the kind's table
	Reattribute(ctx context.Context, kind models.RelationKind, column, from, to string) (int64, error)
}
