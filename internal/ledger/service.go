// Package ledger holds the financial core: all entity mutations go through
// Service, which pairs every store write with exactly one audit entry in a
// single atomic store operation.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/apperrors"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/interfaces"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models/events"
)

// TopicMutations is the Kafka topic mutation events are published to.
const TopicMutations = "ledger_mutations"

const dateLayout = "2006-01-02"

// Service orchestrates patient, transaction and expense bookkeeping. It is
// the only component allowed to mutate entities.
type Service struct {
	store  interfaces.RecordStore
	audit  *AuditRecorder
	events interfaces.EventPublisher // optional; nil disables publishing
	logger *zap.Logger
}

func NewService(store interfaces.RecordStore, publisher interfaces.EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		audit:  NewAuditRecorder(store),
		events: publisher,
		logger: logger,
	}
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// AddPatient validates and records a new patient, auditing the insert.
func (s *Service) AddPatient(ctx context.Context, actor models.Actor, name, admissionType, admissionDate string) (*models.Patient, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.Validation(apperrors.CodeInvalidName, "patient name is required")
	}
	if !models.ValidAdmissionType(admissionType) {
		return nil, apperrors.Validation(apperrors.CodeInvalidType, "unknown admission type")
	}
	if !validDate(admissionDate) {
		return nil, apperrors.Validation(apperrors.CodeInvalidDate, "admission date must be YYYY-MM-DD")
	}

	p := &models.Patient{
		Name:          name,
		Type:          admissionType,
		AdmissionDate: admissionDate,
		CreatedBy:     actor.Username,
	}
	entry := s.audit.insertEntry(actor, models.TablePatients)
	if err := s.store.InsertPatient(ctx, p, entry); err != nil {
		return nil, apperrors.Storage("could not save patient", err)
	}

	s.logger.Info("patient added",
		zap.Int64("patient_id", p.ID),
		zap.String("actor", actor.Username))
	s.publishMutation(ctx, actor, models.ActionInsert, models.TablePatients, p.ID)
	return p, nil
}

// DeletePatient removes a patient and all of its transactions. The cascade
// and the single patients/DELETE audit entry commit together; the cascaded
// transactions are not audited individually.
func (s *Service) DeletePatient(ctx context.Context, actor models.Actor, patientID int64) error {
	patient, err := s.store.GetPatient(ctx, patientID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return apperrors.NotFound(apperrors.CodePatientNotFound, "patient not found")
	}
	if err != nil {
		return apperrors.Storage("could not load patient", err)
	}

	entry, err := s.audit.deleteEntry(actor, models.TablePatients, patient.ID, patient)
	if err != nil {
		return apperrors.Storage("could not serialize audit snapshot", err)
	}
	if err := s.store.DeletePatientCascade(ctx, patientID, entry); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return apperrors.NotFound(apperrors.CodePatientNotFound, "patient not found")
		}
		return apperrors.Storage("could not delete patient", err)
	}

	s.logger.Info("patient deleted",
		zap.Int64("patient_id", patientID),
		zap.String("actor", actor.Username))
	s.publishMutation(ctx, actor, models.ActionDelete, models.TablePatients, patientID)
	return nil
}

// AddPatientTransaction records a deposit or expense against a patient.
func (s *Service) AddPatientTransaction(ctx context.Context, actor models.Actor, patientID int64, date, description string, amount decimal.Decimal, isDeposit, isAmbulance bool) (*models.PatientTransaction, error) {
	if amount.IsNegative() {
		return nil, apperrors.Validation(apperrors.CodeInvalidAmount, "amount must not be negative")
	}
	if !validDate(date) {
		return nil, apperrors.Validation(apperrors.CodeInvalidDate, "date must be YYYY-MM-DD")
	}

	t := &models.PatientTransaction{
		PatientID:   patientID,
		Date:        date,
		Description: description,
		Amount:      amount,
		IsDeposit:   isDeposit,
		IsAmbulance: isAmbulance,
		CreatedBy:   actor.Username,
	}
	entry := s.audit.insertEntry(actor, models.TablePatientTransactions)
	if err := s.store.InsertPatientTransaction(ctx, t, entry); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodePatientNotFound, "patient not found")
		}
		return nil, apperrors.Storage("could not save transaction", err)
	}

	s.logger.Info("transaction added",
		zap.Int64("transaction_id", t.ID),
		zap.Int64("patient_id", patientID),
		zap.Bool("is_deposit", isDeposit),
		zap.String("actor", actor.Username))
	s.publishMutation(ctx, actor, models.ActionInsert, models.TablePatientTransactions, t.ID)
	return t, nil
}

// AddGeneralExpense records an institutional expense. patientName is free
// text and intentionally not checked against the patients table.
func (s *Service) AddGeneralExpense(ctx context.Context, actor models.Actor, date, category, description, patientName string, amount decimal.Decimal) (*models.GeneralExpense, error) {
	if amount.IsNegative() {
		return nil, apperrors.Validation(apperrors.CodeInvalidAmount, "amount must not be negative")
	}
	if !validDate(date) {
		return nil, apperrors.Validation(apperrors.CodeInvalidDate, "date must be YYYY-MM-DD")
	}

	e := &models.GeneralExpense{
		Date:        date,
		Category:    category,
		Description: description,
		PatientName: patientName,
		Amount:      amount,
		CreatedBy:   actor.Username,
	}
	entry := s.audit.insertEntry(actor, models.TableGeneralExpenses)
	if err := s.store.InsertGeneralExpense(ctx, e, entry); err != nil {
		return nil, apperrors.Storage("could not save expense", err)
	}

	s.logger.Info("general expense added",
		zap.Int64("expense_id", e.ID),
		zap.String("actor", actor.Username))
	s.publishMutation(ctx, actor, models.ActionInsert, models.TableGeneralExpenses, e.ID)
	return e, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]models.Patient, error) {
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		return nil, apperrors.Storage("could not list patients", err)
	}
	return patients, nil
}

// ListPatientTransactions returns the patient's transactions newest first.
// An unknown patient yields an empty list, not an error.
func (s *Service) ListPatientTransactions(ctx context.Context, patientID int64) ([]models.PatientTransaction, error) {
	txns, err := s.store.ListPatientTransactions(ctx, patientID)
	if err != nil {
		return nil, apperrors.Storage("could not list transactions", err)
	}
	return txns, nil
}

func (s *Service) ListGeneralExpenses(ctx context.Context) ([]models.GeneralExpense, error) {
	expenses, err := s.store.ListGeneralExpenses(ctx)
	if err != nil {
		return nil, apperrors.Storage("could not list expenses", err)
	}
	return expenses, nil
}

// RecentAuditEntries exposes the audit trail read side (admin only).
func (s *Service) RecentAuditEntries(ctx context.Context, actor models.Actor, limit int) ([]models.AuditEntry, error) {
	return s.audit.Recent(ctx, actor, limit)
}

// publishMutation emits a best-effort RecordMutated event. The audit row is
// already committed; a publish failure is logged and never surfaced.
func (s *Service) publishMutation(ctx context.Context, actor models.Actor, action, table string, recordID int64) {
	if s.events == nil {
		return
	}
	ev := events.RecordMutated{
		EventID:    uuid.NewString(),
		Username:   actor.Username,
		Action:     action,
		TableName:  table,
		RecordID:   recordID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, TopicMutations, ev); err != nil {
		s.logger.Warn("mutation event publish failed",
			zap.String("table", table),
			zap.Int64("record_id", recordID),
			zap.Error(err))
	}
}
