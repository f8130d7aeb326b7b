package accountmerge

import "github.com/Ramsey-B/clover/pkg/models"

// kindOutcome is what one strategy did to one relation kind. Only the field matching the
// kind's strategy is set.
type kindOutcome struct {
	Kind      models.RelationKind
	Transfer  models.TransferStats
	Symmetric models.SymmetricStats
	Singleton models.SingletonStats
}

// mergeTally accumulates outcomes in the order they were produced. add returns a new tally
// and never mutates the receiver.
type mergeTally struct {
	outcomes []kindOutcome
}

func (t mergeTally) add(outcome kindOutcome) mergeTally {
	outcomes := make([]kindOutcome, len(t.outcomes), len(t.outcomes)+1)
	copy(outcomes, t.outcomes)
	return mergeTally{outcomes: append(outcomes, outcome)}
}

func (t mergeTally) Outcomes() []kindOutcome {
	return t.outcomes
}

func (t mergeTally) Stats() models.MergeStats {
	stats := models.MergeStats{
		Transfers:  map[string]models.TransferStats{},
		Symmetric:  map[string]models.SymmetricStats{},
		Singletons: map[string]models.SingletonStats{},
	}
	for _, outcome := range t.outcomes {
		switch outcome.Kind.Strategy {
		case models.MergeStrategyUniquePair, models.MergeStrategyReattribute:
			stats.Transfers[outcome.Kind.Key] = outcome.Transfer
		case models.MergeStrategySymmetric:
			stats.Symmetric[outcome.Kind.Key] = outcome.Symmetric
		case models.MergeStrategySingleton:
			stats.Singletons[outcome.Kind.Key] = outcome.Singleton
		}
	}
	return stats
}
