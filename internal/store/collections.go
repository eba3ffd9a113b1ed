package store

// Collection names in the document store.
const (
	CollectionTasks       = "tasks"
	CollectionMissions    = "missions"
	CollectionRewards     = "rewards"
	CollectionRedemptions = "redemptions"
	CollectionUsers       = "users"
	CollectionSessions    = "sessions"
	CollectionMeta        = "meta"

	CollectionPushSubscriptions = "push_subscriptions"
)

// Stored field names shared with the ledger, pager and backfill.
const (
	FieldChildName          = "childName"
	FieldDate               = "date"
	FieldStarDollars        = "starDollars"
	FieldMissionID          = "missionId"
	FieldMissionDescription = "missionDescription"
	FieldDescription        = "description"
	FieldActive             = "active"
	FieldCost               = "cost"
	FieldCreatedAt          = "createdAt"
	FieldUpdatedAt          = "updatedAt"
	FieldLegacyTimestamp    = "timestamp"
)
