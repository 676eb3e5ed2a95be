package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/interfaces"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
)

// Store is an in-memory implementation of interfaces.RecordStore. It backs
// the tests and local runs without a database. One mutex guards all tables,
// which trivially gives each mutation the same all-or-nothing behavior the
// Postgres store gets from its transactions.
type Store struct {
	mu           sync.Mutex
	patients     []models.Patient
	transactions []models.PatientTransaction
	expenses     []models.GeneralExpense
	audit        []models.AuditEntry

	nextPatientID     int64
	nextTransactionID int64
	nextExpenseID     int64
	nextAuditID       int64
}

func NewStore() *Store {
	return &Store{}
}

// Compile-time check: Store implements the RecordStore interface.
var _ interfaces.RecordStore = (*Store)(nil)

func (s *Store) InsertPatient(ctx context.Context, p *models.Patient, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPatientID++
	p.ID = s.nextPatientID
	p.CreatedAt = time.Now().UTC()
	s.patients = append(s.patients, *p)

	return s.completeInsert(entry, p.ID, *p)
}

func (s *Store) DeletePatientCascade(ctx context.Context, patientID int64, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.patients {
		if s.patients[i].ID == patientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return interfaces.ErrNotFound
	}

	kept := s.transactions[:0]
	for _, t := range s.transactions {
		if t.PatientID != patientID {
			kept = append(kept, t)
		}
	}
	s.transactions = kept
	s.patients = append(s.patients[:idx], s.patients[idx+1:]...)

	entry.RecordID = patientID
	s.appendAudit(entry)
	return nil
}

func (s *Store) InsertPatientTransaction(ctx context.Context, t *models.PatientTransaction, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists := false
	for i := range s.patients {
		if s.patients[i].ID == t.PatientID {
			exists = true
			break
		}
	}
	if !exists {
		return interfaces.ErrNotFound
	}

	s.nextTransactionID++
	t.ID = s.nextTransactionID
	t.CreatedAt = time.Now().UTC()
	s.transactions = append(s.transactions, *t)

	return s.completeInsert(entry, t.ID, *t)
}

func (s *Store) InsertGeneralExpense(ctx context.Context, e *models.GeneralExpense, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextExpenseID++
	e.ID = s.nextExpenseID
	e.CreatedAt = time.Now().UTC()
	s.expenses = append(s.expenses, *e)

	return s.completeInsert(entry, e.ID, *e)
}

// completeInsert snapshots the stored entity into the audit entry and
// appends the entry. Called with the lock held.
func (s *Store) completeInsert(entry *models.AuditEntry, recordID int64, newState any) error {
	entry.RecordID = recordID
	data, err := json.Marshal(newState)
	if err != nil {
		return err
	}
	entry.NewValues = data
	s.appendAudit(entry)
	return nil
}

func (s *Store) appendAudit(entry *models.AuditEntry) {
	s.nextAuditID++
	entry.ID = s.nextAuditID
	entry.Timestamp = time.Now().UTC()
	s.audit = append(s.audit, *entry)
}

func (s *Store) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.patients {
		if s.patients[i].ID == id {
			p := s.patients[i]
			return &p, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (s *Store) ListPatients(ctx context.Context) ([]models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Insertion order is creation order, so newest first means reversed.
	out := make([]models.Patient, 0, len(s.patients))
	for i := len(s.patients) - 1; i >= 0; i-- {
		out = append(out, s.patients[i])
	}
	return out, nil
}

func (s *Store) ListPatientTransactions(ctx context.Context, patientID int64) ([]models.PatientTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PatientTransaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].PatientID == patientID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

func (s *Store) ListGeneralExpenses(ctx context.Context) ([]models.GeneralExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.GeneralExpense, 0, len(s.expenses))
	for i := len(s.expenses) - 1; i >= 0; i-- {
		out = append(out, s.expenses[i])
	}
	return out, nil
}

func (s *Store) RecentAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AuditEntry
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

func (s *Store) SumDeposits(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, t := range s.transactions {
		if t.IsDeposit {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumPatientExpenses(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, t := range s.transactions {
		// Ambulance-flagged expenses stay out of this aggregate by policy.
		if !t.IsDeposit && !t.IsAmbulance {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumGeneralExpenses(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, e := range s.expenses {
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (s *Store) Close() error {
	return nil
}
