package events

import "time"

// RecordMutated announces a committed ledger mutation to downstream
// consumers. The durable audit_log row is the record of truth; this event is
// notification only and carries no snapshots.
type RecordMutated struct {
	EventID    string    `json:"event_id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	TableName  string    `json:"table_name"`
	RecordID   int64     `json:"record_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
