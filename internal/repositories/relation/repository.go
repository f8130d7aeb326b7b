package relation

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// identifiers are interpolated into SQL, so only plain lower-case names are accepted
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Repository runs the generic row operations of the account merge against any table
// described by a models.RelationKind.
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

// ListRows returns the kind's rows whose account column equals accountID, ordered by id
func (r *Repository) ListRows(ctx context.Context, kind models.RelationKind, accountID string) ([]models.RelationRow, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.ListRows")
	defer span.End()

	return r.listRows(ctx, kind, kind.AccountColumn, accountID)
}

// ListRowsByOther returns the kind's rows whose other column equals otherID, ordered by id
func (r *Repository) ListRowsByOther(ctx context.Context, kind models.RelationKind, otherID string) ([]models.RelationRow, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.ListRowsByOther")
	defer span.End()

	if kind.OtherColumn == "" {
		return nil, fmt.Errorf("relation kind %s has no other column", kind.Key)
	}
	return r.listRows(ctx, kind, kind.OtherColumn, otherID)
}

func (r *Repository) listRows(ctx context.Context, kind models.RelationKind, column, value string) ([]models.RelationRow, error) {
	if err := validateIdentifiers(kind.Table, kind.AccountColumn, kind.OtherColumn, column); err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cols := []string{"id", sb.As(kind.AccountColumn, "account_id")}
	if kind.OtherColumn != "" {
		cols = append(cols, sb.As(kind.OtherColumn, "other_id"))
	}
	sb.Select(cols...)
	sb.From(kind.Table)
	sb.Where(sb.Equal(column, value))
	sb.OrderBy("id")

	query, args := sb.Build()
	rows := []models.RelationRow{}
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", kind.Table).Error("Failed to list relation rows")
		return nil, errors.Wrapf(err, "failed to list %s rows", kind.Table)
	}
	return rows, nil
}

// CountRows counts the kind's rows whose account column equals accountID
func (r *Repository) CountRows(ctx context.Context, kind models.RelationKind, accountID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.CountRows")
	defer span.End()

	if err := validateIdentifiers(kind.Table, kind.AccountColumn); err != nil {
		return 0, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(kind.Table)
	sb.Where(sb.Equal(kind.AccountColumn, accountID))

	query, args := sb.Build()
	var count int
	if err := r.db.Executor(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", kind.Table).Error("Failed to count relation rows")
		return 0, errors.Wrapf(err, "failed to count %s rows", kind.Table)
	}
	return count, nil
}

// RepointRows sets column to "to" on the rows with the given ids
func (r *Repository) RepointRows(ctx context.Context, kind models.RelationKind, column string, ids []string, to string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.RepointRows")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}
	if err := validateIdentifiers(kind.Table, column); err != nil {
		return 0, err
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(kind.Table)
	sb.Set(sb.Assign(column, to))
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))

	return r.exec(ctx, kind, "re-point", sb)
}

// DeleteRows removes the rows with the given ids
func (r *Repository) DeleteRows(ctx context.Context, kind models.RelationKind, ids []string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.DeleteRows")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}
	if err := validateIdentifiers(kind.Table); err != nil {
		return 0, err
	}

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom(kind.Table)
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))

	return r.exec(ctx, kind, "delete", sb)
}

// Reattribute moves every row of the kind's table from one account to another on column
func (r *Repository) Reattribute(ctx context.Context, kind models.RelationKind, column, from, to string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.Reattribute")
	defer span.End()

	if err := validateIdentifiers(kind.Table, column); err != nil {
		return 0, err
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(kind.Table)
	sb.Set(sb.Assign(column, to))
	sb.Where(sb.Equal(column, from))

	return r.exec(ctx, kind, "re-attribute", sb)
}

func (r *Repository) exec(ctx context.Context, kind models.RelationKind, action string, builder sqlbuilder.Builder) (int64, error) {
	query, args := builder.Build()
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":  kind.Table,
			"action": action,
		}).Error("Failed to update relation rows")
		return 0, errors.Wrapf(err, "failed to %s %s rows", action, kind.Table)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s row count", kind.Table)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"table":    kind.Table,
		"action":   action,
		"affected": affected,
	}).Debug("Updated relation rows")
	return affected, nil
}

func validateIdentifiers(names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid SQL identifier %q", name)
		}
	}
	return nil
}
