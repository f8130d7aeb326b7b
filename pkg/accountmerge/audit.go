package accountmerge

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// composeAuditNote renders the note attached to the target after a merge. Lines follow the
// order the strategies ran in.
func composeAuditNote(source, admin *models.Account, tally mergeTally) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Account merged: %s (%s, id %s) was merged into this account by %s (id %s).\n",
		displayName(source), source.Email, source.ID, displayName(admin), admin.ID)

	for _, outcome := range tally.Outcomes() {
		b.WriteString("- ")
		b.WriteString(outcome.Kind.Label)
		b.WriteString(": ")
		b.WriteString(describeOutcome(outcome))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeOutcome(outcome kindOutcome) string {
	switch outcome.Kind.Strategy {
	case models.MergeStrategyUniquePair:
		return fmt.Sprintf("%d transferred, %d skipped as duplicates", outcome.Transfer.Transferred, outcome.Transfer.Skipped)
	case models.MergeStrategyReattribute:
		return fmt.Sprintf("%d transferred", outcome.Transfer.Transferred)
	case models.MergeStrategySymmetric:
		s := outcome.Symmetric
		return fmt.Sprintf("%d transferred, %d skipped as duplicates, %d self-references removed, %d re-attributed",
			s.Transferred, s.Skipped, s.SelfReferences, s.Reattributed)
	case models.MergeStrategySingleton:
		switch {
		case outcome.Singleton.Kept:
			return "kept the existing record on this account"
		case outcome.Singleton.Transferred:
			return "transferred from the merged account"
		default:
			return "none"
		}
	}
	return "unknown"
}

func displayName(account *models.Account) string {
	if account.Name != "" {
		return account.Name
	}
	return account.Email
}
