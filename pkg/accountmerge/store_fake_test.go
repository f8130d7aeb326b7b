package accountmerge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeRow map[string]string

type fakeState struct {
	accounts map[string]models.Account
	tables   map[string][]fakeRow
}

func (s fakeState) clone() fakeState {
	c := fakeState{accounts: map[string]models.Account{}, tables: map[string][]fakeRow{}}
	for id, account := range s.accounts {
		c.accounts[id] = account
	}
	for table, rows := range s.tables {
		copied := make([]fakeRow, 0, len(rows))
		for _, row := range rows {
			r := fakeRow{}
			for k, v := range row {
				r[k] = v
			}
			copied = append(copied, r)
		}
		c.tables[table] = copied
	}
	return c
}

// fakeStore is an in-memory AccountStore and RelationStore. It enforces the unique and
// foreign key constraints of the real schema and restores its state on rollback.
type fakeStore struct {
	kinds    []models.RelationKind
	state    fakeState
	snapshot *fakeState
	seq      int

	failures   map[string]error
	onLock     func(id string)
	txOptions  *sql.TxOptions
	txDeadline bool
	commits    int
	rollbacks  int
}

type fakeTx struct {
	store *fakeStore
	done  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kinds:    models.RelationKinds,
		state:    fakeState{accounts: map[string]models.Account{}, tables: map[string][]fakeRow{}},
		failures: map[string]error{},
	}
}

func (f *fakeStore) addAccount(id, email string, role models.Role) {
	f.state.accounts[id] = models.Account{ID: id, Email: email, Name: id, Role: role}
}

func (f *fakeStore) addRow(table string, row fakeRow) string {
	f.seq++
	id := fmt.Sprintf("%s-%d", table, f.seq)
	row["id"] = id
	f.state.tables[table] = append(f.state.tables[table], row)
	return id
}

func (f *fakeStore) rows(table string) []fakeRow {
	return f.state.tables[table]
}

func (f *fakeStore) hasAccount(id string) bool {
	_, ok := f.state.accounts[id]
	return ok
}

func (f *fakeStore) fail(op string) error {
	return f.failures[op]
}

func (f *fakeStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Transaction, error) {
	if err := f.fail("BeginTx"); err != nil {
		return ctx, nil, err
	}
	snapshot := f.state.clone()
	f.snapshot = &snapshot
	f.txOptions = opts
	_, f.txDeadline = ctx.Deadline()
	return ctx, &fakeTx{store: f}, nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	if err := t.store.fail("Commit"); err != nil {
		return err
	}
	t.done = true
	t.store.snapshot = nil
	t.store.commits++
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if t.store.snapshot != nil {
		t.store.state = *t.store.snapshot
		t.store.snapshot = nil
	}
	t.store.rollbacks++
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	if err := f.fail("GetAccount"); err != nil {
		return nil, err
	}
	account, ok := f.state.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (f *fakeStore) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	if f.onLock != nil {
		f.onLock(id)
	}
	if err := f.fail("LockAccount"); err != nil {
		return nil, err
	}
	account, ok := f.state.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (f *fakeStore) CreateAdminNote(_ context.Context, note *models.AdminNote) error {
	if err := f.fail("CreateAdminNote"); err != nil {
		return err
	}
	note.ID = f.addRow("admin_notes", fakeRow{"user_id": note.UserID, "created_by": note.CreatedBy, "content": note.Content})
	note.CreatedAt = time.Now()
	return nil
}

func (f *fakeStore) DeleteAccount(_ context.Context, id string) (int64, error) {
	if err := f.fail("DeleteAccount"); err != nil {
		return 0, err
	}
	if _, ok := f.state.accounts[id]; !ok {
		return 0, nil
	}
	for _, kind := range f.kinds {
		columns := append([]string{kind.AccountColumn}, kind.AttributionColumns...)
		if kind.Strategy == models.MergeStrategySymmetric {
			columns = append(columns, kind.OtherColumn)
		}
		for _, row := range f.state.tables[kind.Table] {
			for _, column := range columns {
				if row[column] == id {
					return 0, &pq.Error{Code: pqForeignKeyViolation, Message: fmt.Sprintf("%s.%s still references %s", kind.Table, column, id)}
				}
			}
		}
	}
	delete(f.state.accounts, id)
	return 1, nil
}

func (f *fakeStore) ListRows(_ context.Context, kind models.RelationKind, accountID string) ([]models.RelationRow, error) {
	if err := f.fail("ListRows:" + kind.Key); err != nil {
		return nil, err
	}
	return f.selectRows(kind, kind.AccountColumn, accountID), nil
}

func (f *fakeStore) ListRowsByOther(_ context.Context, kind models.RelationKind, otherID string) ([]models.RelationRow, error) {
	return f.selectRows(kind, kind.OtherColumn, otherID), nil
}

func (f *fakeStore) selectRows(kind models.RelationKind, column, value string) []models.RelationRow {
	var out []models.RelationRow
	for _, row := range f.state.tables[kind.Table] {
		if row[column] == value {
			out = append(out, models.RelationRow{ID: row["id"], AccountID: row[kind.AccountColumn], OtherID: row[kind.OtherColumn]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) CountRows(_ context.Context, kind models.RelationKind, accountID string) (int, error) {
	return len(f.selectRows(kind, kind.AccountColumn, accountID)), nil
}

func (f *fakeStore) RepointRows(_ context.Context, kind models.RelationKind, column string, ids []string, to string) (int64, error) {
	if err := f.fail("RepointRows:" + kind.Key); err != nil {
		return 0, err
	}
	wanted := map[string]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var n int64
	for _, row := range f.state.tables[kind.Table] {
		if _, ok := wanted[row["id"]]; ok {
			row[column] = to
			n++
		}
	}
	return n, f.checkConstraints(kind)
}

func (f *fakeStore) DeleteRows(_ context.Context, kind models.RelationKind, ids []string) (int64, error) {
	if err := f.fail("DeleteRows:" + kind.Key); err != nil {
		return 0, err
	}
	wanted := map[string]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	kept := f.state.tables[kind.Table][:0:0]
	var n int64
	for _, row := range f.state.tables[kind.Table] {
		if _, ok := wanted[row["id"]]; ok {
			n++
			continue
		}
		kept = append(kept, row)
	}
	f.state.tables[kind.Table] = kept
	return n, nil
}

func (f *fakeStore) Reattribute(_ context.Context, kind models.RelationKind, column, from, to string) (int64, error) {
	if err := f.fail("Reattribute:" + kind.Key); err != nil {
		return 0, err
	}
	var n int64
	for _, row := range f.state.tables[kind.Table] {
		if row[column] == from {
			row[column] = to
			n++
		}
	}
	return n, nil
}

// checkConstraints mirrors the unique indexes and the self-reference check of the schema
func (f *fakeStore) checkConstraints(kind models.RelationKind) error {
	seen := map[string]struct{}{}
	for _, row := range f.state.tables[kind.Table] {
		var key string
		switch kind.Strategy {
		case models.MergeStrategyUniquePair, models.MergeStrategySymmetric:
			key = row[kind.AccountColumn] + "|" + row[kind.OtherColumn]
		case models.MergeStrategySingleton:
			key = row[kind.AccountColumn]
		default:
			continue
		}
		if kind.Strategy == models.MergeStrategySymmetric && row[kind.AccountColumn] == row[kind.OtherColumn] {
			return &pq.Error{Code: "23514", Message: "new row violates check constraint \"friendships_no_self\""}
		}
		if _, dup := seen[key]; dup {
			return &pq.Error{Code: pqUniqueViolation, Message: "duplicate key value violates unique constraint"}
		}
		seen[key] = struct{}{}
	}
	return nil
}
