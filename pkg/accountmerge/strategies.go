package accountmerge

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// strategyOrder is the order strategies run in. Unique pairs go first so rows keyed on other
// entities settle before bulk updates touch the same tables.
var strategyOrder = []models.MergeStrategyType{
	models.MergeStrategyUniquePair,
	models.MergeStrategyReattribute,
	models.MergeStrategySymmetric,
	models.MergeStrategySingleton,
}

// applyStrategies moves every relation of source onto target. ctx must carry the merge transaction.
func (e *Engine) applyStrategies(ctx context.Context, targetID, sourceID string) (mergeTally, error) {
	var tally mergeTally
	for _, strategy := range strategyOrder {
		for _, kind := range e.kindsFor(strategy) {
			outcome, err := e.applyKind(ctx, kind, targetID, sourceID)
			if err != nil {
				return tally, fmt.Errorf("merging %s: %w", kind.Key, err)
			}
			tally = tally.add(outcome)
		}
	}
	return tally, nil
}

func (e *Engine) applyKind(ctx context.Context, kind models.RelationKind, targetID, sourceID string) (kindOutcome, error) {
	outcome := kindOutcome{Kind: kind}
	var err error
	switch kind.Strategy {
	case models.MergeStrategyUniquePair:
		outcome.Transfer, err = e.mergeUniquePair(ctx, kind, targetID, sourceID)
	case models.MergeStrategyReattribute:
		outcome.Transfer, err = e.mergeReattribute(ctx, kind, targetID, sourceID)
	case models.MergeStrategySymmetric:
		outcome.Symmetric, err = e.mergeSymmetric(ctx, kind, targetID, sourceID)
	case models.MergeStrategySingleton:
		outcome.Singleton, err = e.mergeSingleton(ctx, kind, targetID, sourceID)
	default:
		err = fmt.Errorf("unknown merge strategy %q", kind.Strategy)
	}
	return outcome, err
}

func (e *Engine) mergeUniquePair(ctx context.Context, kind models.RelationKind, targetID, sourceID string) (models.TransferStats, error) {
	targetRows, sourceRows, err := e.listPair(ctx, kind, targetID, sourceID)
	if err != nil {
		return models.TransferStats{}, err
	}

	plan := planUniquePair(targetRows, sourceRows)
	if err := e.applyPlan(ctx, kind, kind.AccountColumn, plan, targetID); err != nil {
		return models.TransferStats{}, err
	}
	return models.TransferStats{Transferred: len(plan.Transfer), Skipped: len(plan.Duplicates)}, nil
}

func (e *Engine) mergeReattribute(ctx context.Context, kind models.RelationKind, targetID, sourceID string) (models.TransferStats, error) {
	moved, err := e.relations.Reattribute(ctx, kind, kind.AccountColumn, sourceID, targetID)
	if err != nil {
		return models.TransferStats{}, err
	}
	return models.TransferStats{Transferred: int(moved)}, nil
}

// mergeSymmetric reconciles both directions of a relationship. The incoming side is listed
// only after the outgoing side has been applied.
func (e *Engine) mergeSymmetric(ctx context.Context, kind models.RelationKind, targetID, sourceID string) (models.SymmetricStats, error) {
	var stats models.SymmetricStats

	targetOut, sourceOut, err := e.listPair(ctx, kind, targetID, sourceID)
	if err != nil {
		return stats, err
	}
	outgoing := planSymmetricOutgoing(targetID, sourceID, targetOut, sourceOut)
	if err := e.applyPlan(ctx, kind, kind.AccountColumn, outgoing, targetID); err != nil {
		return stats, err
	}

	targetIn, err := e.relations.ListRowsByOther(ctx, kind, targetID)
	if err != nil {
		return stats, err
	}
	sourceIn, err := e.relations.ListRowsByOther(ctx, kind, sourceID)
	if err != nil {
		return stats, err
	}
	incoming := planSymmetricIncoming(targetID, sourceID, targetIn, sourceIn)
	if err := e.applyPlan(ctx, kind, kind.OtherColumn, incoming, targetID); err != nil {
		return stats, err
	}

	stats.Transferred = len(outgoing.Transfer) + len(incoming.Transfer)
	stats.Skipped = len(outgoing.Duplicates) + len(incoming.Duplicates)
	stats.SelfReferences = len(outgoing.SelfReferences) + len(incoming.SelfReferences)

	for _, column := range kind.AttributionColumns {
		moved, err := e.relations.Reattribute(ctx, kind, column, sourceID, targetID)
		if err != nil {
			return stats, err
		}
		stats.Reattributed += int(moved)
	}
	return stats, nil
}

func (e *Engine) mergeSingleton(ctx context.Context, kind models.RelationKind, targetID, sourceID string) (models.SingletonStats, error) {
	targetRows, sourceRows, err := e.listPair(ctx, kind, targetID, sourceID)
	if err != nil {
		return models.SingletonStats{}, err
	}

	sourceIDs := rowIDs(sourceRows)
	switch planSingleton(len(targetRows) > 0, len(sourceRows) > 0) {
	case singletonKeepTarget:
		if len(sourceIDs) > 0 {
			if _, err := e.relations.DeleteRows(ctx, kind, sourceIDs); err != nil {
				return models.SingletonStats{}, err
			}
		}
		return models.SingletonStats{Kept: true}, nil
	case singletonTransfer:
		if _, err := e.relations.RepointRows(ctx, kind, kind.AccountColumn, sourceIDs, targetID); err != nil {
			return models.SingletonStats{}, err
		}
		return models.SingletonStats{Transferred: true}, nil
	}
	return models.SingletonStats{}, nil
}

func (e *Engine) listPair(ctx context.Context, kind models.RelationKind, targetID, sourceID string) ([]models.RelationRow, []models.RelationRow, error) {
	targetRows, err := e.relations.ListRows(ctx, kind, targetID)
	if err != nil {
		return nil, nil, err
	}
	sourceRows, err := e.relations.ListRows(ctx, kind, sourceID)
	if err != nil {
		return nil, nil, err
	}
	return targetRows, sourceRows, nil
}

// applyPlan deletes before it re-points so no update can collide with a row about to go
func (e *Engine) applyPlan(ctx context.Context, kind models.RelationKind, column string, plan rowPlan, targetID string) error {
	if deletions := plan.deletions(); len(deletions) > 0 {
		if _, err := e.relations.DeleteRows(ctx, kind, deletions); err != nil {
			return err
		}
	}
	if len(plan.Transfer) > 0 {
		if _, err := e.relations.RepointRows(ctx, kind, column, plan.Transfer, targetID); err != nil {
			return err
		}
	}
	return nil
}

func rowIDs(rows []models.RelationRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
