package ledger

import (
	"context"
	"encoding/json"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/apperrors"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/interfaces"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
)

// MaxAuditEntries caps the audit listing; older entries stay in the store
// but are not served through this read path.
const MaxAuditEntries = 100

// AuditRecorder assembles the audit entries the store persists alongside
// each mutation, and serves the privileged read side of the trail.
type AuditRecorder struct {
	store interfaces.RecordStore
}

func NewAuditRecorder(store interfaces.RecordStore) *AuditRecorder {
	return &AuditRecorder{store: store}
}

// insertEntry starts an INSERT audit entry. The record id and new-state
// snapshot are completed by the store inside the mutation's transaction,
// once the assigned id exists.
func (r *AuditRecorder) insertEntry(actor models.Actor, table string) *models.AuditEntry {
	return &models.AuditEntry{
		Username:  actor.Username,
		Action:    models.ActionInsert,
		TableName: table,
	}
}

// deleteEntry builds a DELETE audit entry carrying the record's prior state.
func (r *AuditRecorder) deleteEntry(actor models.Actor, table string, recordID int64, prior any) (*models.AuditEntry, error) {
	data, err := json.Marshal(prior)
	if err != nil {
		return nil, err
	}
	return &models.AuditEntry{
		Username:  actor.Username,
		Action:    models.ActionDelete,
		TableName: table,
		RecordID:  recordID,
		OldValues: data,
	}, nil
}

// Recent returns the newest audit entries, admin only. limit is clamped to
// MaxAuditEntries; non-positive values get the full cap.
func (r *AuditRecorder) Recent(ctx context.Context, actor models.Actor, limit int) ([]models.AuditEntry, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Unauthorized(apperrors.CodeAdminRequired, "audit trail requires the admin role")
	}
	if limit <= 0 || limit > MaxAuditEntries {
		limit = MaxAuditEntries
	}
	entries, err := r.store.RecentAuditEntries(ctx, limit)
	if err != nil {
		return nil, apperrors.Storage("could not read audit trail", err)
	}
	return entries, nil
}
