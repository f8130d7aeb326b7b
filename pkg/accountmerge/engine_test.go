package accountmerge

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// newMergeWorld seeds a target and a source that overlap on signups, friendships and
// profiles, plus a third-party admin and two friends.
func newMergeWorld() *fakeStore {
	store := newFakeStore()
	store.addAccount("target", "target@example.com", models.RoleVolunteer)
	store.addAccount("source", "source@example.com", models.RoleVolunteer)
	store.addAccount("admin", "admin@example.com", models.RoleAdmin)
	store.addAccount("x", "x@example.com", models.RoleVolunteer)
	store.addAccount("y", "y@example.com", models.RoleVolunteer)

	store.addRow("signups", fakeRow{"user_id": "target", "shift_id": "shift-a"})
	store.addRow("signups", fakeRow{"user_id": "source", "shift_id": "shift-a"})
	store.addRow("signups", fakeRow{"user_id": "source", "shift_id": "shift-b"})

	friends := func(a, b, initiatedBy string) {
		store.addRow("friendships", fakeRow{"user_id": a, "friend_id": b, "initiated_by": initiatedBy})
		store.addRow("friendships", fakeRow{"user_id": b, "friend_id": a, "initiated_by": initiatedBy})
	}
	friends("target", "x", "target")
	friends("source", "x", "x")
	friends("source", "target", "source")
	friends("source", "y", "source")

	for i := 0; i < 3; i++ {
		store.addRow("notifications", fakeRow{"user_id": "source"})
	}
	store.addRow("admin_notes", fakeRow{"user_id": "source", "created_by": "admin", "content": "called about parking"})
	store.addRow("admin_notes", fakeRow{"user_id": "x", "created_by": "source", "content": "helped onboard x"})

	store.addRow("restaurant_managers", fakeRow{"user_id": "target"})
	store.addRow("restaurant_managers", fakeRow{"user_id": "source"})
	store.addRow("regular_volunteers", fakeRow{"user_id": "source"})
	return store
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, store, testLogger(), Config{TransactionTimeout: 5 * time.Second})
}

func countWhere(rows []fakeRow, column, value string) int {
	n := 0
	for _, row := range rows {
		if row[column] == value {
			n++
		}
	}
	return n
}

func TestPreview(t *testing.T) {
	ctx := context.Background()

	t.Run("reports every strategy without writing", func(t *testing.T) {
		store := newMergeWorld()
		engine := newTestEngine(store)
		before := store.state.clone()

		preview, err := engine.Preview(ctx, "target", "source")
		require.NoError(t, err)

		assert.Equal(t, "target@example.com", preview.Target.Email)
		assert.Equal(t, "source@example.com", preview.Source.Email)
		assert.Equal(t, models.PairPreview{Label: "Shift signups", Total: 2, Duplicates: 1, ToTransfer: 1}, preview.UniquePairs["signups"])
		assert.Equal(t, 0, preview.UniquePairs["achievements"].Total)
		assert.Equal(t, 3, preview.Reattributions["notifications"].Total)
		assert.Equal(t, 1, preview.Reattributions["admin_notes_about"].Total)
		assert.Equal(t, 1, preview.Reattributions["admin_notes_authored"].Total)
		assert.Equal(t, models.SymmetricPreview{Label: "Friendships", Total: 3, SelfReferences: 1, Duplicates: 1, ToTransfer: 1}, preview.Symmetric["friendships"])
		assert.Equal(t, models.SingletonPreview{Label: "Restaurant manager profile", TargetHas: true, SourceHas: true}, preview.Singletons["restaurant_manager"])
		assert.True(t, preview.Singletons["regular_volunteer"].WillTransfer)
		assert.False(t, preview.Singletons["parental_consent"].SourceHas)

		assert.Equal(t, before, store.state)
		require.NotNil(t, store.txOptions)
		assert.True(t, store.txOptions.ReadOnly)
		assert.Equal(t, 0, store.commits)
	})

	t.Run("is idempotent", func(t *testing.T) {
		store := newMergeWorld()
		engine := newTestEngine(store)

		first, err := engine.Preview(ctx, "target", "source")
		require.NoError(t, err)
		second, err := engine.Preview(ctx, "target", "source")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("has a section for every catalogue kind", func(t *testing.T) {
		store := newMergeWorld()
		preview, err := newTestEngine(store).Preview(ctx, "target", "source")
		require.NoError(t, err)

		total := len(preview.UniquePairs) + len(preview.Reattributions) + len(preview.Symmetric) + len(preview.Singletons)
		assert.Equal(t, len(models.RelationKinds), total)
	})

	t.Run("rejects invalid pairs", func(t *testing.T) {
		store := newMergeWorld()
		engine := newTestEngine(store)

		_, err := engine.Preview(ctx, "target", "target")
		assert.ErrorIs(t, err, ErrSameUser)

		_, err = engine.Preview(ctx, "missing", "source")
		assert.ErrorIs(t, err, ErrTargetNotFound)

		_, err = engine.Preview(ctx, "target", "missing")
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("store errors surface as transaction failures", func(t *testing.T) {
		store := newMergeWorld()
		store.failures["ListRows:signups"] = errors.New("connection reset by peer")

		_, err := newTestEngine(store).Preview(ctx, "target", "source")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.Contains(t, err.Error(), "connection reset by peer")
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("merges every relation and deletes the source", func(t *testing.T) {
		store := newMergeWorld()
		engine := newTestEngine(store)

		preview, err := engine.Preview(ctx, "target", "source")
		require.NoError(t, err)

		result, err := engine.Execute(ctx, "target", "source", "admin")
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, "target", result.Target.ID)
		assert.Equal(t, "source", result.DeletedSourceID)
		assert.Equal(t, "source@example.com", result.DeletedSourceEmail)
		assert.False(t, store.hasAccount("source"))
		assert.Equal(t, 1, store.commits)

		// signups: the shared shift stays single, the new one moves
		signups := store.rows("signups")
		assert.Len(t, signups, 2)
		assert.Equal(t, 2, countWhere(signups, "user_id", "target"))
		assert.Equal(t, models.TransferStats{Transferred: 1, Skipped: 1}, result.Stats.Transfers["signups"])
		assert.Equal(t, preview.UniquePairs["signups"].ToTransfer, result.Stats.Transfers["signups"].Transferred)
		assert.Equal(t, preview.UniquePairs["signups"].Duplicates, result.Stats.Transfers["signups"].Skipped)

		// friendships: one row per direction with x and y, none with itself
		friendships := store.rows("friendships")
		assert.Len(t, friendships, 4)
		for _, row := range friendships {
			assert.NotEqual(t, row["user_id"], row["friend_id"])
			assert.NotEqual(t, "source", row["user_id"])
			assert.NotEqual(t, "source", row["friend_id"])
			assert.NotEqual(t, "source", row["initiated_by"])
		}
		assert.Equal(t, 2, countWhere(friendships, "user_id", "target"))
		assert.Equal(t, 2, countWhere(friendships, "friend_id", "target"))
		assert.Equal(t, models.SymmetricStats{Transferred: 2, Skipped: 2, SelfReferences: 2, Reattributed: 2}, result.Stats.Symmetric["friendships"])

		assert.Equal(t, 3, result.Stats.Transfers["notifications"].Transferred)
		assert.Equal(t, 3, countWhere(store.rows("notifications"), "user_id", "target"))
		assert.Equal(t, 0, countWhere(store.rows("admin_notes"), "created_by", "source"))

		// singletons: the target's manager profile survives, the volunteer profile moves
		assert.Len(t, store.rows("restaurant_managers"), 1)
		assert.Equal(t, "target", store.rows("restaurant_managers")[0]["user_id"])
		assert.Equal(t, models.SingletonStats{Kept: true}, result.Stats.Singletons["restaurant_manager"])
		assert.Equal(t, models.SingletonStats{Transferred: true}, result.Stats.Singletons["regular_volunteer"])
		assert.Equal(t, models.SingletonStats{}, result.Stats.Singletons["parental_consent"])
	})

	t.Run("writes an audit note on the target", func(t *testing.T) {
		store := newMergeWorld()
		result, err := newTestEngine(store).Execute(ctx, "target", "source", "admin")
		require.NoError(t, err)
		require.NotEmpty(t, result.AuditNoteID)

		var note fakeRow
		for _, row := range store.rows("admin_notes") {
			if row["id"] == result.AuditNoteID {
				note = row
			}
		}
		require.NotNil(t, note)
		assert.Equal(t, "target", note["user_id"])
		assert.Equal(t, "admin", note["created_by"])
		assert.Contains(t, note["content"], "source@example.com")
		assert.Contains(t, note["content"], "Shift signups: 1 transferred, 1 skipped as duplicates")
		assert.Contains(t, note["content"], "Friendships: 2 transferred, 2 skipped as duplicates, 2 self-references removed, 2 re-attributed")
		assert.Contains(t, note["content"], "Restaurant manager profile: kept the existing record on this account")
		assert.Contains(t, note["content"], "Regular volunteer profile: transferred from the merged account")
	})

	t.Run("runs serializable with a deadline", func(t *testing.T) {
		store := newMergeWorld()
		_, err := newTestEngine(store).Execute(ctx, "target", "source", "admin")
		require.NoError(t, err)
		require.NotNil(t, store.txOptions)
		assert.Equal(t, sql.LevelSerializable, store.txOptions.Isolation)
		assert.True(t, store.txDeadline)
	})

	t.Run("merges accounts with no relations", func(t *testing.T) {
		store := newFakeStore()
		store.addAccount("target", "target@example.com", models.RoleVolunteer)
		store.addAccount("source", "source@example.com", models.RoleVolunteer)
		store.addAccount("admin", "admin@example.com", models.RoleAdmin)

		result, err := newTestEngine(store).Execute(ctx, "target", "source", "admin")
		require.NoError(t, err)
		assert.Equal(t, models.TransferStats{}, result.Stats.Transfers["signups"])
		assert.False(t, store.hasAccount("source"))
		assert.Len(t, store.rows("admin_notes"), 1)
	})

	t.Run("lets the target merge when it is the acting admin", func(t *testing.T) {
		store := newMergeWorld()
		store.addAccount("target", "target@example.com", models.RoleAdmin)

		_, err := newTestEngine(store).Execute(ctx, "target", "source", "target")
		require.NoError(t, err)
		assert.False(t, store.hasAccount("source"))
	})
}

func TestExecute_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		target   string
		source   string
		admin    string
		setup    func(store *fakeStore)
		expected *MergeError
	}{
		{name: "same account", target: "target", source: "target", admin: "admin", expected: ErrSameUser},
		{name: "target missing", target: "nobody", source: "source", admin: "admin", expected: ErrTargetNotFound},
		{name: "source missing", target: "target", source: "nobody", admin: "admin", expected: ErrSourceNotFound},
		{name: "admin missing", target: "target", source: "source", admin: "nobody", expected: ErrAdminNotFound},
		{name: "acting account is a volunteer", target: "target", source: "source", admin: "x", expected: ErrAdminNotAuthorized},
		{
			name:   "admin merging away their own account",
			target: "target", source: "source", admin: "source",
			setup: func(store *fakeStore) {
				store.addAccount("source", "source@example.com", models.RoleAdmin)
			},
			expected: ErrAdminNotAuthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMergeWorld()
			if tt.setup != nil {
				tt.setup(store)
			}
			before := store.state.clone()

			result, err := newTestEngine(store).Execute(ctx, tt.target, tt.source, tt.admin)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, before, store.state)
			assert.Nil(t, store.txOptions, "no transaction should open")
		})
	}
}

func TestExecute_Atomicity(t *testing.T) {
	ctx := context.Background()

	t.Run("source deleted between pre-flight and lock", func(t *testing.T) {
		store := newMergeWorld()
		store.onLock = func(id string) {
			if id == "source" {
				delete(store.state.accounts, "source")
			}
		}

		_, err := newTestEngine(store).Execute(ctx, "target", "source", "admin")
		assert.ErrorIs(t, err, ErrUserDeletedDuringMerge)

		mergeErr, ok := AsMergeError(err)
		require.True(t, ok)
		assert.True(t, mergeErr.Retryable())
		assert.Equal(t, 3, countWhere(store.rows("notifications"), "user_id", "source"))
		assert.Equal(t, 0, store.commits)
	})

	t.Run("failure part way rolls everything back", func(t *testing.T) {
		store := newMergeWorld()
		before := store.state.clone()
		store.failures["Reattribute:notifications"] = errors.New("disk full")

		_, err := newTestEngine(store).Execute(ctx, "target", "source", "admin")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.Contains(t, err.Error(), "disk full")

		assert.Equal(t, before, store.state)
		assert.True(t, store.hasAccount("source"))
		assert.Equal(t, 1, store.rollbacks)
	})

	t.Run("unique violation is reported as a duplicate conflict", func(t *testing.T) {
		store := newMergeWorld()
		engine := NewEngine(store, &duplicatingRelations{fakeStore: store}, testLogger(), Config{})

		_, err := engine.Execute(ctx, "target", "source", "admin")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.Contains(t, err.Error(), "duplicate conflict")
		assert.True(t, store.hasAccount("source"))
	})

	t.Run("leftover reference is reported as untransferable", func(t *testing.T) {
		store := newMergeWorld()
		kinds := make([]models.RelationKind, 0, len(models.RelationKinds))
		for _, kind := range models.RelationKinds {
			if kind.Key != "notifications" {
				kinds = append(kinds, kind)
			}
		}
		engine := NewEngine(store, store, testLogger(), Config{Kinds: kinds})

		_, err := engine.Execute(ctx, "target", "source", "admin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "some references could not be transferred")
		assert.True(t, store.hasAccount("source"))
		assert.Equal(t, 3, countWhere(store.rows("notifications"), "user_id", "source"))
	})

	t.Run("commit failure leaves the source in place", func(t *testing.T) {
		store := newMergeWorld()
		store.failures["Commit"] = errors.New("could not serialize access due to concurrent update")

		_, err := newTestEngine(store).Execute(ctx, "target", "source", "admin")
		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.True(t, store.hasAccount("source"))
	})
}

// duplicatingRelations skips duplicate detection so re-pointing collides with the target's rows
type duplicatingRelations struct {
	*fakeStore
}

func (d *duplicatingRelations) ListRows(ctx context.Context, kind models.RelationKind, accountID string) ([]models.RelationRow, error) {
	if kind.Key == "signups" && accountID == "target" {
		return nil, nil
	}
	return d.fakeStore.ListRows(ctx, kind, accountID)
}

func TestComposeAuditNote(t *testing.T) {
	source := &models.Account{ID: "s-1", Email: "dup@example.com", Name: "Dup"}
	admin := &models.Account{ID: "a-1", Email: "admin@example.com"}

	var tally mergeTally
	tally = tally.add(kindOutcome{Kind: models.RelationKinds[0], Transfer: models.TransferStats{Transferred: 4, Skipped: 1}})
	tally = tally.add(kindOutcome{Kind: models.RelationKindsByStrategy(models.RelationKinds, models.MergeStrategySingleton)[2]})

	note := composeAuditNote(source, admin, tally)
	lines := strings.Split(note, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Account merged: Dup (dup@example.com, id s-1) was merged into this account by admin@example.com (id a-1).", lines[0])
	assert.Equal(t, "- Shift signups: 4 transferred, 1 skipped as duplicates", lines[1])
	assert.Equal(t, "- Parental consent: none", lines[2])
}

func TestAuthorizeAdmin(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(newMergeWorld())

	admin, err := engine.AuthorizeAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", admin.Email)

	_, err = engine.AuthorizeAdmin(ctx, "x")
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)

	_, err = engine.AuthorizeAdmin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}
