package models

// AccountSummary is the identifying part of an account shown around a merge
type AccountSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Summary reduces an account to its identifying fields
func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Email: a.Email, Name: a.Name}
}

// PairPreview predicts the outcome for a unique-pair kind
type PairPreview struct {
	Label      string `json:"label"`
	Total      int    `json:"total"`
	Duplicates int    `json:"duplicates"`
	ToTransfer int    `json:"to_transfer"`
}

// ReattributionPreview counts the source rows a bulk re-point would move
type ReattributionPreview struct {
	Label string `json:"label"`
	Total int    `json:"total"`
}

// SymmetricPreview predicts the outcome for a symmetric relationship kind.
// Counts are for the source's outgoing rows.
type SymmetricPreview struct {
	Label          string `json:"label"`
	Total          int    `json:"total"`
	SelfReferences int    `json:"self_references"`
	Duplicates     int    `json:"duplicates"`
	ToTransfer     int    `json:"to_transfer"`
}

// SingletonPreview predicts the outcome for a singleton sub-profile kind
type SingletonPreview struct {
	Label        string `json:"label"`
	TargetHas    bool   `json:"target_has"`
	SourceHas    bool   `json:"source_has"`
	WillTransfer bool   `json:"will_transfer"`
}

// MergePreview is the read-only report shown before an admin confirms a merge
type MergePreview struct {
	Target         AccountSummary                  `json:"target"`
	Source         AccountSummary                  `json:"source"`
	UniquePairs    map[string]PairPreview          `json:"unique_pairs"`
	Reattributions map[string]ReattributionPreview `json:"reattributions"`
	Symmetric      map[string]SymmetricPreview     `json:"symmetric"`
	Singletons     map[string]SingletonPreview     `json:"singletons"`
}

// TransferStats is the outcome for a unique-pair or re-attributed kind
type TransferStats struct {
	Transferred int `json:"transferred"`
	Skipped     int `json:"skipped"`
}

// SymmetricStats is the outcome for a symmetric relationship kind
type SymmetricStats struct {
	Transferred    int `json:"transferred"`
	Skipped        int `json:"skipped"`
	SelfReferences int `json:"self_references"`
	Reattributed   int `json:"reattributed"`
}

// SingletonStats is the outcome for a singleton sub-profile kind
type SingletonStats struct {
	Transferred bool `json:"transferred"`
	Kept        bool `json:"kept"`
}

// MergeStats holds per-kind outcomes keyed by RelationKind.Key
type MergeStats struct {
	Transfers  map[string]TransferStats  `json:"transfers"`
	Symmetric  map[string]SymmetricStats `json:"symmetric"`
	Singletons map[string]SingletonStats `json:"singletons"`
}

// MergeResult is returned by a successful merge
type MergeResult struct {
	Success            bool           `json:"success"`
	Target             AccountSummary `json:"target"`
	DeletedSourceID    string         `json:"deleted_source_id"`
	DeletedSourceEmail string         `json:"deleted_source_email"`
	AuditNoteID        string         `json:"audit_note_id"`
	Stats              MergeStats     `json:"stats"`
}
