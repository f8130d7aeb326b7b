package account

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/clover/pkg/accountmerge"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var accountColumns = []string{"id", "email", "name", "role", "created_at", "updated_at"}

// pqInvalidTextRepresentation is raised when an id is not a valid uuid
const pqInvalidTextRepresentation = "22P02"

// Repository handles account persistence. Errors keep the driver error as their cause.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ErrTxAlreadyOpen is returned by BeginTx when ctx already carries a transaction
var ErrTxAlreadyOpen = errors.New("a transaction is already open on the context")

// BeginTx opens a transaction with opts. Joining an outer transaction would silently drop
// opts, so a ctx that already carries one is refused.
func (r *Repository) BeginTx(ctx context.Context, opts *sql.TxOptions) (context.Context, accountmerge.Transaction, error) {
	if database.HasTx(ctx) {
		return ctx, nil, ErrTxAlreadyOpen
	}
	ctx, tx, err := r.db.GetTx(ctx, opts)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, tx, nil
}

// GetAccount returns nil, nil when no account has the id, including ids that are not uuids
func (r *Repository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	ctx, span := tracing.StartSpan(ctx, "account.Repository.GetAccount")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(accountColumns...)
	sb.From("users")
	sb.Where(sb.Equal("id", id))

	return r.getAccount(ctx, sb)
}

// LockAccount reads the account with FOR UPDATE; ctx must carry a transaction for the lock to outlive the call
func (r *Repository) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	ctx, span := tracing.StartSpan(ctx, "account.Repository.LockAccount")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(accountColumns...)
	sb.From("users")
	sb.Where(sb.Equal("id", id))
	sb.ForUpdate()

	return r.getAccount(ctx, sb)
}

func (r *Repository) getAccount(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Account, error) {
	query, args := sb.Build()
	var account models.Account
	if err := r.db.Executor(ctx).GetContext(ctx, &account, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get account")
		return nil, errors.Wrap(err, "failed to get account")
	}
	return &account, nil
}

// CreateAdminNote inserts the note, assigning its ID and creation time
func (r *Repository) CreateAdminNote(ctx context.Context, note *models.AdminNote) error {
	ctx, span := tracing.StartSpan(ctx, "account.Repository.CreateAdminNote")
	defer span.End()

	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("admin_notes")
	sb.Cols("id", "user_id", "content", "created_by", "created_at")
	sb.Values(note.ID, note.UserID, note.Content, note.CreatedBy, note.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create admin note")
		return errors.Wrap(err, "failed to create admin note")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": note.ID, "user_id": note.UserID}).Debug("Created admin note")
	return nil
}

// DeleteAccount hard-deletes the account and returns the number of rows removed
func (r *Repository) DeleteAccount(ctx context.Context, id string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "account.Repository.DeleteAccount")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("users")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete account")
		return 0, errors.Wrap(err, "failed to delete account")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read deleted account count")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id, "deleted": deleted}).Info("Deleted account")
	return deleted, nil
}
