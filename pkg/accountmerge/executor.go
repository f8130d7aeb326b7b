package accountmerge

import (
	"context"
	"database/sql"
	"time"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Execute folds sourceID into targetID on behalf of actingAdminID. Either every relation moves,
// the audit note is written and the source is deleted, or nothing changes.
func (e *Engine) Execute(ctx context.Context, targetID, sourceID, actingAdminID string) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "accountmerge.Engine.Execute")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"target_id": targetID,
		"source_id": sourceID,
		"admin_id":  actingAdminID,
	})

	start := time.Now()
	result, tally, err := e.execute(ctx, targetID, sourceID, actingAdminID)
	metrics.RecordMergeOperation("execute", resultCode(err), time.Since(start).Seconds())
	if err != nil {
		mergeErr := classifyError(err)
		entry := log.WithError(mergeErr).WithField("code", mergeErr.Code)
		if mergeErr.IsInfrastructure() {
			entry.WithField("cause", mergeErr.Cause).Error("Account merge failed")
		} else {
			entry.Warn("Account merge rejected")
		}
		return nil, mergeErr
	}

	recordTally(tally)
	log.WithFields(map[string]any{
		"audit_note_id": result.AuditNoteID,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Account merge committed")
	return result, nil
}

func (e *Engine) execute(ctx context.Context, targetID, sourceID, actingAdminID string) (*models.MergeResult, mergeTally, error) {
	target, source, err := e.loadPair(ctx, targetID, sourceID)
	if err != nil {
		return nil, mergeTally{}, err
	}

	admin, err := e.AuthorizeAdmin(ctx, actingAdminID)
	if err != nil {
		return nil, mergeTally{}, err
	}
	if admin.ID == source.ID {
		return nil, mergeTally{}, newMergeError(ErrAdminNotAuthorized, "an admin cannot merge away their own account")
	}

	return e.mergeInTransaction(ctx, target.ID, source.ID, admin)
}

// AuthorizeAdmin loads the acting account and checks it holds the admin role
func (e *Engine) AuthorizeAdmin(ctx context.Context, actingAdminID string) (*models.Account, error) {
	admin, err := e.accounts.GetAccount(ctx, actingAdminID)
	if err != nil {
		return nil, classifyError(err)
	}
	if admin == nil {
		return nil, newMergeError(ErrAdminNotFound, "")
	}
	if !admin.IsAdmin() {
		return nil, newMergeError(ErrAdminNotAuthorized, "")
	}
	return admin, nil
}

func (e *Engine) mergeInTransaction(ctx context.Context, targetID, sourceID string, admin *models.Account) (*models.MergeResult, mergeTally, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	txCtx, tx, err := e.accounts.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mergeTally{}, err
	}
	defer tx.Rollback(txCtx)

	// re-read under lock; either account may have been deleted since the pre-flight check
	target, err := e.accounts.LockAccount(txCtx, targetID)
	if err != nil {
		return nil, mergeTally{}, err
	}
	source, err := e.accounts.LockAccount(txCtx, sourceID)
	if err != nil {
		return nil, mergeTally{}, err
	}
	if target == nil || source == nil {
		return nil, mergeTally{}, newMergeError(ErrUserDeletedDuringMerge, "")
	}

	tally, err := e.applyStrategies(txCtx, target.ID, source.ID)
	if err != nil {
		return nil, mergeTally{}, err
	}

	note := &models.AdminNote{
		UserID:    target.ID,
		Content:   composeAuditNote(source, admin, tally),
		CreatedBy: admin.ID,
	}
	if err := e.accounts.CreateAdminNote(txCtx, note); err != nil {
		return nil, mergeTally{}, err
	}

	deleted, err := e.accounts.DeleteAccount(txCtx, source.ID)
	if err != nil {
		return nil, mergeTally{}, err
	}
	if deleted == 0 {
		return nil, mergeTally{}, newMergeError(ErrUserDeletedDuringMerge, "")
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, mergeTally{}, err
	}

	return &models.MergeResult{
		Success:            true,
		Target:             target.Summary(),
		DeletedSourceID:    source.ID,
		DeletedSourceEmail: source.Email,
		AuditNoteID:        note.ID,
		Stats:              tally.Stats(),
	}, tally, nil
}

func recordTally(tally mergeTally) {
	for _, outcome := range tally.Outcomes() {
		key := outcome.Kind.Key
		switch outcome.Kind.Strategy {
		case models.MergeStrategyUniquePair, models.MergeStrategyReattribute:
			metrics.RecordMergeRecords(key, "transferred", outcome.Transfer.Transferred)
			metrics.RecordMergeRecords(key, "skipped", outcome.Transfer.Skipped)
		case models.MergeStrategySymmetric:
			metrics.RecordMergeRecords(key, "transferred", outcome.Symmetric.Transferred)
			metrics.RecordMergeRecords(key, "skipped", outcome.Symmetric.Skipped)
			metrics.RecordMergeRecords(key, "self_reference", outcome.Symmetric.SelfReferences)
			metrics.RecordMergeRecords(key, "reattributed", outcome.Symmetric.Reattributed)
		case models.MergeStrategySingleton:
			if outcome.Singleton.Transferred {
				metrics.RecordMergeRecords(key, "transferred", 1)
			}
		}
	}
}
