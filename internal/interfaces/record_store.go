package interfaces

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
)

// ErrNotFound is returned by stores when a referenced record does not exist.
// Callers map it to their own error kinds.
var ErrNotFound = errors.New("record not found")

// RecordStore is durable storage for patients, patient transactions, general
// expenses and the audit trail. Implementations must make each mutation
// method atomic: the entity write and its audit row commit together or not
// at all.
//
// Insert methods assign the record's ID and CreatedAt on the passed entity,
// and complete the audit entry (RecordID, NewValues, ID, Timestamp) inside
// the same transaction so the snapshot captures the store-assigned fields.
type RecordStore interface {
	InsertPatient(ctx context.Context, p *models.Patient, entry *models.AuditEntry) error
	// DeletePatientCascade removes the patient's transactions, then the
	// patient, then writes the single audit entry for the patient deletion.
	// Cascaded transactions get no audit rows of their own.
	DeletePatientCascade(ctx context.Context, patientID int64, entry *models.AuditEntry) error
	// InsertPatientTransaction fails with ErrNotFound when the referenced
	// patient does not exist; nothing is written in that case.
	InsertPatientTransaction(ctx context.Context, t *models.PatientTransaction, entry *models.AuditEntry) error
	InsertGeneralExpense(ctx context.Context, e *models.GeneralExpense, entry *models.AuditEntry) error

	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	ListPatients(ctx context.Context) ([]models.Patient, error)
	ListPatientTransactions(ctx context.Context, patientID int64) ([]models.PatientTransaction, error)
	ListGeneralExpenses(ctx context.Context) ([]models.GeneralExpense, error)
	// RecentAuditEntries returns the newest entries first, at most limit.
	RecentAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error)

	// Aggregates return zero when no rows match, never an absent value.
	SumDeposits(ctx context.Context) (decimal.Decimal, error)
	SumPatientExpenses(ctx context.Context) (decimal.Decimal, error)
	SumGeneralExpenses(ctx context.Context) (decimal.Decimal, error)

	Close() error
}
