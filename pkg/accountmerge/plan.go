package accountmerge

import "github.com/Ramsey-B/clover/pkg/models"

// rowPlan splits a set of source rows into the ones to re-point and the ones to delete
type rowPlan struct {
	Transfer       []string
	Duplicates     []string
	SelfReferences []string
}

func (p rowPlan) deletions() []string {
	ids := make([]string, 0, len(p.Duplicates)+len(p.SelfReferences))
	ids = append(ids, p.SelfReferences...)
	return append(ids, p.Duplicates...)
}

// planUniquePair keeps the target's rows and moves each source row whose other entity the
// target does not already have. A key repeated on the source side moves once.
func planUniquePair(targetRows, sourceRows []models.RelationRow) rowPlan {
	owned := make(map[string]struct{}, len(targetRows)+len(sourceRows))
	for _, row := range targetRows {
		owned[row.OtherID] = struct{}{}
	}

	var plan rowPlan
	for _, row := range sourceRows {
		if _, ok := owned[row.OtherID]; ok {
			plan.Duplicates = append(plan.Duplicates, row.ID)
			continue
		}
		owned[row.OtherID] = struct{}{}
		plan.Transfer = append(plan.Transfer, row.ID)
	}
	return plan
}

// planSymmetricOutgoing handles rows owned by the source (source -> X). Rows pointing at
// either merged account would become self-references; rows whose X the target already
// points at are duplicates.
func planSymmetricOutgoing(targetID, sourceID string, targetRows, sourceRows []models.RelationRow) rowPlan {
	linked := make(map[string]struct{}, len(targetRows)+len(sourceRows))
	for _, row := range targetRows {
		linked[row.OtherID] = struct{}{}
	}

	var plan rowPlan
	for _, row := range sourceRows {
		switch {
		case row.OtherID == targetID || row.OtherID == sourceID:
			plan.SelfReferences = append(plan.SelfReferences, row.ID)
		case hasKey(linked, row.OtherID):
			plan.Duplicates = append(plan.Duplicates, row.ID)
		default:
			linked[row.OtherID] = struct{}{}
			plan.Transfer = append(plan.Transfer, row.ID)
		}
	}
	return plan
}

// planSymmetricIncoming handles rows pointing at the source (X -> source), mirroring
// planSymmetricOutgoing on the owner side.
func planSymmetricIncoming(targetID, sourceID string, targetIncoming, sourceIncoming []models.RelationRow) rowPlan {
	linked := make(map[string]struct{}, len(targetIncoming)+len(sourceIncoming))
	for _, row := range targetIncoming {
		linked[row.AccountID] = struct{}{}
	}

	var plan rowPlan
	for _, row := range sourceIncoming {
		switch {
		case row.AccountID == targetID || row.AccountID == sourceID:
			plan.SelfReferences = append(plan.SelfReferences, row.ID)
		case hasKey(linked, row.AccountID):
			plan.Duplicates = append(plan.Duplicates, row.ID)
		default:
			linked[row.AccountID] = struct{}{}
			plan.Transfer = append(plan.Transfer, row.ID)
		}
	}
	return plan
}

type singletonDecision int

const (
	singletonNothing singletonDecision = iota
	singletonKeepTarget
	singletonTransfer
)

func planSingleton(targetHas, sourceHas bool) singletonDecision {
	switch {
	case targetHas:
		return singletonKeepTarget
	case sourceHas:
		return singletonTransfer
	default:
		return singletonNothing
	}
}

func hasKey(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
