package accountmerge_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/account"
	"github.com/Ramsey-B/clover/internal/repositories/relation"
	"github.com/Ramsey-B/clover/pkg/accountmerge"
	"github.com/Ramsey-B/clover/pkg/database"
)

const (
	targetUUID  = "5b0a7f52-4c1e-4a58-9a65-7d3e1f0f2a01"
	sourceUUID  = "9c2e1d04-2b7f-4f0e-8e3a-1a6b5c4d3e02"
	oidcSubject = "google-oauth2|1234"
)

var userColumns = []string{"id", "email", "name", "role", "created_at", "updated_at"}

func newSQLMockEngine(t *testing.T) (*accountmerge.Engine, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db := database.NewDatabaseInstance(sqlx.NewDb(conn, "postgres"), logger)
	engine := accountmerge.NewEngine(account.NewRepository(db, logger), relation.NewRepository(db, logger), logger, accountmerge.Config{})
	return engine, mock
}

func expectUser(mock sqlmock.Sqlmock, id, role string) {
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(id, id+"@example.com", "", role, now, now))
}

func expectInvalidUUID(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "` + id + `"`})
}

func TestEngine_IDsThatAreNotUUIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("target", func(t *testing.T) {
		engine, mock := newSQLMockEngine(t)
		expectInvalidUUID(mock, "not-a-uuid")

		_, err := engine.Preview(ctx, "not-a-uuid", sourceUUID)
		assert.ErrorIs(t, err, accountmerge.ErrTargetNotFound)
		assert.Equal(t, accountmerge.CodeTargetNotFound, accountmerge.ErrorCodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("source", func(t *testing.T) {
		engine, mock := newSQLMockEngine(t)
		expectUser(mock, targetUUID, "VOLUNTEER")
		expectInvalidUUID(mock, "not-a-uuid")

		_, err := engine.Preview(ctx, targetUUID, "not-a-uuid")
		assert.ErrorIs(t, err, accountmerge.ErrSourceNotFound)
		assert.Equal(t, accountmerge.CodeSourceNotFound, accountmerge.ErrorCodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("acting admin", func(t *testing.T) {
		engine, mock := newSQLMockEngine(t)
		expectInvalidUUID(mock, oidcSubject)

		_, err := engine.AuthorizeAdmin(ctx, oidcSubject)
		assert.ErrorIs(t, err, accountmerge.ErrAdminNotFound)
		assert.Equal(t, accountmerge.CodeAdminNotFound, accountmerge.ErrorCodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("acting admin during execute", func(t *testing.T) {
		engine, mock := newSQLMockEngine(t)
		expectUser(mock, targetUUID, "VOLUNTEER")
		expectUser(mock, sourceUUID, "VOLUNTEER")
		expectInvalidUUID(mock, oidcSubject)

		_, err := engine.Execute(ctx, targetUUID, sourceUUID, oidcSubject)
		assert.ErrorIs(t, err, accountmerge.ErrAdminNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
