package models

import (
	"encoding/json"
	"time"
)

// Audit action kinds. ActionUpdate is reserved: the ledger has no update
// operations today, so nothing emits it.
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Table names as recorded in the audit trail.
const (
	TablePatients            = "patients"
	TablePatientTransactions = "patient_transactions"
	TableGeneralExpenses     = "general_expenses"
)

// AuditEntry is one immutable row of the audit trail: who did what to which
// record, with before/after snapshots. OldValues is nil on INSERT, NewValues
// is nil on DELETE. Entries are append-only; nothing in the system updates
// or deletes one once written.
type AuditEntry struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Action    string          `json:"action"`
	TableName string          `json:"table_name"`
	RecordID  int64           `json:"record_id"`
	OldValues json.RawMessage `json:"old_values,omitempty"`
	NewValues json.RawMessage `json:"new_values,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
