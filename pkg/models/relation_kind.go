package models

// MergeStrategyType is how rows of one relation kind are reconciled during an account merge
type MergeStrategyType string

const (
	// MergeStrategyUniquePair transfers rows keyed by (account, other entity), dropping
	// source rows whose key the target already owns.
	MergeStrategyUniquePair MergeStrategyType = "unique_pair"
	// MergeStrategyReattribute re-points every row in one bulk update.
	MergeStrategyReattribute MergeStrategyType = "reattribute"
	// MergeStrategySingleton keeps the target's row when it has one, otherwise moves the source's.
	MergeStrategySingleton MergeStrategyType = "singleton"
	// MergeStrategySymmetric reconciles two directed rows per relationship between accounts.
	MergeStrategySymmetric MergeStrategyType = "symmetric"
)

// RelationKind declares one table that references accounts and how it merges
type RelationKind struct {
	Key           string            `json:"key"`
	Label         string            `json:"label"`
	Table         string            `json:"table"`
	AccountColumn string            `json:"account_column"`
	OtherColumn   string            `json:"other_column,omitempty"`
	Strategy      MergeStrategyType `json:"strategy"`
	// AttributionColumns are extra account columns on a symmetric table that are bulk re-pointed
	AttributionColumns []string `json:"attribution_columns,omitempty"`
}

// RelationRow is one row of a relation kind reduced to the columns the merge needs
type RelationRow struct {
	ID        string `db:"id"`
	AccountID string `db:"account_id"`
	OtherID   string `db:"other_id"`
}

// RelationKinds is every table that references users, in merge order within each strategy
var RelationKinds = []RelationKind{
	{Key: "signups", Label: "Shift signups", Table: "signups", AccountColumn: "user_id", OtherColumn: "shift_id", Strategy: MergeStrategyUniquePair},
	{Key: "survey_assignments", Label: "Survey assignments", Table: "survey_assignments", AccountColumn: "user_id", OtherColumn: "survey_id", Strategy: MergeStrategyUniquePair},
	{Key: "custom_labels", Label: "Custom labels", Table: "user_custom_labels", AccountColumn: "user_id", OtherColumn: "label_id", Strategy: MergeStrategyUniquePair},
	{Key: "achievements", Label: "Achievements", Table: "user_achievements", AccountColumn: "user_id", OtherColumn: "achievement_id", Strategy: MergeStrategyUniquePair},
	{Key: "group_memberships", Label: "Notification group memberships", Table: "notification_group_members", AccountColumn: "user_id", OtherColumn: "group_id", Strategy: MergeStrategyUniquePair},
	{Key: "location_preferences", Label: "Location preferences", Table: "user_location_preferences", AccountColumn: "user_id", OtherColumn: "location", Strategy: MergeStrategyUniquePair},

	{Key: "admin_notes_about", Label: "Admin notes about the account", Table: "admin_notes", AccountColumn: "user_id", Strategy: MergeStrategyReattribute},
	{Key: "admin_notes_authored", Label: "Admin notes written", Table: "admin_notes", AccountColumn: "created_by", Strategy: MergeStrategyReattribute},
	{Key: "notifications", Label: "Notifications", Table: "notifications", AccountColumn: "user_id", Strategy: MergeStrategyReattribute},
	{Key: "auto_accept_rules", Label: "Auto-accept rules created", Table: "auto_accept_rules", AccountColumn: "created_by", Strategy: MergeStrategyReattribute},
	{Key: "shift_templates", Label: "Shift templates created", Table: "shift_templates", AccountColumn: "created_by", Strategy: MergeStrategyReattribute},
	{Key: "announcements", Label: "Announcements created", Table: "announcements", AccountColumn: "created_by", Strategy: MergeStrategyReattribute},
	{Key: "notification_groups", Label: "Notification groups created", Table: "notification_groups", AccountColumn: "created_by", Strategy: MergeStrategyReattribute},
	{Key: "group_invitations", Label: "Group invitations sent", Table: "notification_group_invitations", AccountColumn: "invited_by", Strategy: MergeStrategyReattribute},
	{Key: "resources", Label: "Resources uploaded", Table: "resources", AccountColumn: "uploaded_by", Strategy: MergeStrategyReattribute},

	{Key: "friendships", Label: "Friendships", Table: "friendships", AccountColumn: "user_id", OtherColumn: "friend_id", Strategy: MergeStrategySymmetric, AttributionColumns: []string{"initiated_by"}},

	{Key: "restaurant_manager", Label: "Restaurant manager profile", Table: "restaurant_managers", AccountColumn: "user_id", Strategy: MergeStrategySingleton},
	{Key: "regular_volunteer", Label: "Regular volunteer profile", Table: "regular_volunteers", AccountColumn: "user_id", Strategy: MergeStrategySingleton},
	{Key: "parental_consent", Label: "Parental consent", Table: "parental_consents", AccountColumn: "user_id", Strategy: MergeStrategySingleton},
}

// RelationKindsByStrategy returns the kinds using the given strategy, in catalogue order
func RelationKindsByStrategy(catalogue []RelationKind, strategy MergeStrategyType) []RelationKind {
	kinds := make([]RelationKind, 0, len(catalogue))
	for _, kind := range catalogue {
		if kind.Strategy == strategy {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
