package accountmerge

import (
	"context"
	"database/sql"
	"time"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Preview reports what merging sourceID into targetID would do without writing anything.
// Counts come from the same planners Execute uses, read inside one read-only snapshot.
func (e *Engine) Preview(ctx context.Context, targetID, sourceID string) (*models.MergePreview, error) {
	ctx, span := tracing.StartSpan(ctx, "accountmerge.Engine.Preview")
	defer span.End()

	start := time.Now()
	preview, err := e.preview(ctx, targetID, sourceID)
	metrics.RecordMergeOperation("preview", resultCode(err), time.Since(start).Seconds())
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"target_id": targetID,
			"source_id": sourceID,
			"code":      ErrorCodeOf(err),
		}).Warn("Merge preview failed")
		return nil, err
	}
	return preview, nil
}

func (e *Engine) preview(ctx context.Context, targetID, sourceID string) (*models.MergePreview, error) {
	target, source, err := e.loadPair(ctx, targetID, sourceID)
	if err != nil {
		return nil, err
	}

	txCtx, tx, err := e.accounts.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, classifyError(err)
	}
	defer tx.Rollback(txCtx)

	preview := &models.MergePreview{
		Target:         target.Summary(),
		Source:         source.Summary(),
		UniquePairs:    map[string]models.PairPreview{},
		Reattributions: map[string]models.ReattributionPreview{},
		Symmetric:      map[string]models.SymmetricPreview{},
		Singletons:     map[string]models.SingletonPreview{},
	}

	for _, kind := range e.kinds {
		if err := e.previewKind(txCtx, preview, kind, target.ID, source.ID); err != nil {
			return nil, classifyError(err)
		}
	}
	return preview, nil
}

func (e *Engine) previewKind(ctx context.Context, preview *models.MergePreview, kind models.RelationKind, targetID, sourceID string) error {
	switch kind.Strategy {
	case models.MergeStrategyUniquePair:
		targetRows, sourceRows, err := e.listPair(ctx, kind, targetID, sourceID)
		if err != nil {
			return err
		}
		plan := planUniquePair(targetRows, sourceRows)
		preview.UniquePairs[kind.Key] = models.PairPreview{
			Label:      kind.Label,
			Total:      len(sourceRows),
			Duplicates: len(plan.Duplicates),
			ToTransfer: len(plan.Transfer),
		}

	case models.MergeStrategyReattribute:
		total, err := e.relations.CountRows(ctx, kind, sourceID)
		if err != nil {
			return err
		}
		preview.Reattributions[kind.Key] = models.ReattributionPreview{Label: kind.Label, Total: total}

	case models.MergeStrategySymmetric:
		targetRows, sourceRows, err := e.listPair(ctx, kind, targetID, sourceID)
		if err != nil {
			return err
		}
		plan := planSymmetricOutgoing(targetID, sourceID, targetRows, sourceRows)
		preview.Symmetric[kind.Key] = models.SymmetricPreview{
			Label:          kind.Label,
			Total:          len(sourceRows),
			SelfReferences: len(plan.SelfReferences),
			Duplicates:     len(plan.Duplicates),
			ToTransfer:     len(plan.Transfer),
		}

	case models.MergeStrategySingleton:
		targetRows, sourceRows, err := e.listPair(ctx, kind, targetID, sourceID)
		if err != nil {
			return err
		}
		targetHas, sourceHas := len(targetRows) > 0, len(sourceRows) > 0
		preview.Singletons[kind.Key] = models.SingletonPreview{
			Label:        kind.Label,
			TargetHas:    targetHas,
			SourceHas:    sourceHas,
			WillTransfer: planSingleton(targetHas, sourceHas) == singletonTransfer,
		}
	}
	return nil
}
