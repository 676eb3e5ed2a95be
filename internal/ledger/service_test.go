package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/apperrors"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models/events"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/storage/memory"
)

var (
	admin = models.Actor{ID: 1, Username: "admin", Role: models.RoleAdmin}
	clerk = models.Actor{ID: 2, Username: "clerk", Role: "staff"}
)

type fakePublisher struct {
	published []events.RecordMutated
	fail      bool
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, event any) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, event.(events.RecordMutated))
	return nil
}

func newTestLedger(t *testing.T) (*Service, *memory.Store, *fakePublisher) {
	t.Helper()
	store := memory.NewStore()
	pub := &fakePublisher{}
	return NewService(store, pub, zap.NewNop()), store, pub
}

func auditFor(t *testing.T, store *memory.Store, table string) []models.AuditEntry {
	t.Helper()
	entries, err := store.RecentAuditEntries(context.Background(), 1000)
	require.NoError(t, err)
	var out []models.AuditEntry
	for _, e := range entries {
		if e.TableName == table {
			out = append(out, e)
		}
	}
	return out
}

func TestAddPatientAssignsIDAndAudits(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionSelf, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "clerk", p.CreatedBy)
	assert.False(t, p.CreatedAt.IsZero())

	entries := auditFor(t, store, models.TablePatients)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, models.ActionInsert, entry.Action)
	assert.Equal(t, "clerk", entry.Username)
	assert.Equal(t, p.ID, entry.RecordID)
	assert.Nil(t, entry.OldValues)

	// The new-state snapshot carries the store-assigned id.
	var snapshot models.Patient
	require.NoError(t, json.Unmarshal(entry.NewValues, &snapshot))
	assert.Equal(t, p.ID, snapshot.ID)
	assert.Equal(t, "A", snapshot.Name)
	assert.Equal(t, models.AdmissionSelf, snapshot.Type)
	assert.Equal(t, "2024-01-01", snapshot.AdmissionDate)
}

func TestAddPatientValidation(t *testing.T) {
	tests := []struct {
		name          string
		patientName   string
		admissionType string
		admissionDate string
		wantCode      string
	}{
		{"empty name", "", models.AdmissionSelf, "2024-01-01", apperrors.CodeInvalidName},
		{"blank name", "   ", models.AdmissionSelf, "2024-01-01", apperrors.CodeInvalidName},
		{"unknown type", "A", "Helicopter", "2024-01-01", apperrors.CodeInvalidType},
		{"bad date", "A", models.AdmissionSelf, "01/02/2024", apperrors.CodeInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestLedger(t)
			ctx := context.Background()

			_, err := svc.AddPatient(ctx, clerk, tt.patientName, tt.admissionType, tt.admissionDate)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))

			// Rejected before any write: no patient, no audit row.
			patients, err := store.ListPatients(ctx)
			require.NoError(t, err)
			assert.Empty(t, patients)
			assert.Empty(t, auditFor(t, store, models.TablePatients))
		})
	}
}

func TestDeletePatientCascades(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionAmbulance, "2024-01-01")
	require.NoError(t, err)

	for _, deposit := range []bool{true, false, false} {
		_, err := svc.AddPatientTransaction(ctx, clerk, p.ID, "2024-01-02", "visit", decimal.NewFromInt(100), deposit, false)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeletePatient(ctx, admin, p.ID))

	txns, err := svc.ListPatientTransactions(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)

	patients, err := svc.ListPatients(ctx)
	require.NoError(t, err)
	assert.Empty(t, patients)

	// One INSERT + one DELETE on patients; the cascaded transactions keep
	// their INSERT entries but gain no DELETE entries of their own.
	patientEntries := auditFor(t, store, models.TablePatients)
	require.Len(t, patientEntries, 2)
	deleteEntry := patientEntries[0] // newest first
	assert.Equal(t, models.ActionDelete, deleteEntry.Action)
	assert.Equal(t, p.ID, deleteEntry.RecordID)
	assert.Equal(t, "admin", deleteEntry.Username)
	assert.Nil(t, deleteEntry.NewValues)

	var prior models.Patient
	require.NoError(t, json.Unmarshal(deleteEntry.OldValues, &prior))
	assert.Equal(t, "A", prior.Name)

	txnEntries := auditFor(t, store, models.TablePatientTransactions)
	require.Len(t, txnEntries, 3)
	for _, e := range txnEntries {
		assert.Equal(t, models.ActionInsert, e.Action)
	}
}

func TestDeletePatientNotFound(t *testing.T) {
	svc, store, _ := newTestLedger(t)

	err := svc.DeletePatient(context.Background(), admin, 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodePatientNotFound, apperrors.CodeOf(err))
	assert.Empty(t, auditFor(t, store, models.TablePatients))
}

func TestAddTransactionUnknownPatient(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := svc.AddPatientTransaction(ctx, clerk, 99, "2024-01-02", "visit", decimal.NewFromInt(50), true, false)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodePatientNotFound, apperrors.CodeOf(err))

	// Nothing written: no transaction row, no audit row.
	txns, err := svc.ListPatientTransactions(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Empty(t, auditFor(t, store, models.TablePatientTransactions))
}

func TestAddTransactionNegativeAmount(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionSelf, "2024-01-01")
	require.NoError(t, err)

	_, err = svc.AddPatientTransaction(ctx, clerk, p.ID, "2024-01-02", "refund?", decimal.NewFromInt(-5), false, false)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodeInvalidAmount, apperrors.CodeOf(err))

	// Zero is a valid magnitude.
	_, err = svc.AddPatientTransaction(ctx, clerk, p.ID, "2024-01-02", "waived", decimal.Zero, false, false)
	assert.NoError(t, err)
}

func TestAddGeneralExpenseFreeTextPatientName(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()

	// The name does not have to match any tracked patient.
	e, err := svc.AddGeneralExpense(ctx, clerk, "2024-02-01", "supplies", "bandages", "Nonexistent Person", decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, "Nonexistent Person", e.PatientName)

	entries := auditFor(t, store, models.TableGeneralExpenses)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionInsert, entries[0].Action)
	assert.Equal(t, e.ID, entries[0].RecordID)
}

func TestListTransactionsUnknownPatientEmpty(t *testing.T) {
	svc, _, _ := newTestLedger(t)

	txns, err := svc.ListPatientTransactions(context.Background(), 1234)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRoundTripListEqualsAdd(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionWalkIn, "2024-01-01")
	require.NoError(t, err)
	patients, err := svc.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, *p, patients[0])

	txn, err := svc.AddPatientTransaction(ctx, clerk, p.ID, "2024-01-02", "deposit", decimal.NewFromInt(500), true, false)
	require.NoError(t, err)
	txns, err := svc.ListPatientTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, *txn, txns[0])

	exp, err := svc.AddGeneralExpense(ctx, clerk, "2024-01-03", "utilities", "power", "", decimal.NewFromInt(75))
	require.NoError(t, err)
	expenses, err := svc.ListGeneralExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, *exp, expenses[0])
}

func TestRecentAuditRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionSelf, "2024-01-01")
	require.NoError(t, err)

	entries, err := svc.RecentAuditEntries(ctx, clerk, 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodeAdminRequired, apperrors.CodeOf(err))
	assert.Nil(t, entries)
}

func TestRecentAuditNewestFirstAndClamped(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionSelf, "2024-01-01")
	require.NoError(t, err)
	_, err = svc.AddPatientTransaction(ctx, clerk, p.ID, "2024-01-02", "deposit", decimal.NewFromInt(10), true, false)
	require.NoError(t, err)
	_, err = svc.AddGeneralExpense(ctx, clerk, "2024-01-03", "misc", "", "", decimal.NewFromInt(5))
	require.NoError(t, err)

	entries, err := svc.RecentAuditEntries(ctx, admin, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.TableGeneralExpenses, entries[0].TableName)
	assert.Equal(t, models.TablePatientTransactions, entries[1].TableName)
	assert.Equal(t, models.TablePatients, entries[2].TableName)

	limited, err := svc.RecentAuditEntries(ctx, admin, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// Oversized limits clamp to the cap instead of erroring.
	capped, err := svc.RecentAuditEntries(ctx, admin, MaxAuditEntries+50)
	require.NoError(t, err)
	assert.Len(t, capped, 3)
}

func TestMutationEventsPublished(t *testing.T) {
	svc, _, pub := newTestLedger(t)
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionSelf, "2024-01-01")
	require.NoError(t, err)
	require.NoError(t, svc.DeletePatient(ctx, admin, p.ID))

	require.Len(t, pub.published, 2)
	assert.Equal(t, models.ActionInsert, pub.published[0].Action)
	assert.Equal(t, models.TablePatients, pub.published[0].TableName)
	assert.Equal(t, p.ID, pub.published[0].RecordID)
	assert.NotEmpty(t, pub.published[0].EventID)
	assert.Equal(t, models.ActionDelete, pub.published[1].Action)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, &fakePublisher{fail: true}, zap.NewNop())
	ctx := context.Background()

	p, err := svc.AddPatient(ctx, clerk, "A", models.AdmissionSelf, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	// The audit row committed with the mutation regardless.
	require.Len(t, auditFor(t, store, models.TablePatients), 1)
}

func TestNilPublisherIsAllowed(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, zap.NewNop())

	_, err := svc.AddPatient(context.Background(), clerk, "A", models.AdmissionSelf, "2024-01-01")
	assert.NoError(t, err)
}
