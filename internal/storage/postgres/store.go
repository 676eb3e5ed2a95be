package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/interfaces"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
)

// Store is the PostgreSQL implementation of interfaces.RecordStore.
// Every mutation runs its entity write and its audit row in one database
// transaction, so a failed audit insert rolls the primary write back.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, tunes the pool and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Compile-time check: Store implements the RecordStore interface.
var _ interfaces.RecordStore = (*Store)(nil)

// EnsureSchema creates the four ledger tables when they do not exist yet.
// patient_transactions carries the foreign key to patients; together with
// the per-mutation transactions it serializes an add-transaction racing a
// patient delete.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	admission_date TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patient_transactions (
	id BIGSERIAL PRIMARY KEY,
	patient_id BIGINT NOT NULL REFERENCES patients(id),
	date TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount NUMERIC(14,2) NOT NULL CHECK (amount >= 0),
	is_deposit BOOLEAN NOT NULL,
	is_ambulance BOOLEAN NOT NULL DEFAULT FALSE,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS general_expenses (
	id BIGSERIAL PRIMARY KEY,
	date TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	patient_name TEXT NOT NULL DEFAULT '',
	amount NUMERIC(14,2) NOT NULL CHECK (amount >= 0),
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	action TEXT NOT NULL,
	table_name TEXT NOT NULL,
	record_id BIGINT NOT NULL,
	old_values JSONB,
	new_values JSONB,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) InsertPatient(ctx context.Context, p *models.Patient, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO patients (name, type, admission_date, created_by)
	VALUES ($1,$2,$3,$4) RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query, p.Name, p.Type, p.AdmissionDate, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}

	if err = completeInsertEntry(entry, p.ID, p); err != nil {
		return err
	}
	if err = insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func (s *Store) DeletePatientCascade(ctx context.Context, patientID int64, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Transactions first: the foreign key would block deleting the patient
	// while rows still reference it.
	if _, err = tx.ExecContext(ctx, `DELETE FROM patient_transactions WHERE patient_id = $1`, patientID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, patientID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = interfaces.ErrNotFound
		return err
	}

	entry.RecordID = patientID
	if err = insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func (s *Store) InsertPatientTransaction(ctx context.Context, t *models.PatientTransaction, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// The existence check gives a clean not-found result; the foreign key
	// is the backstop against a patient deleted between check and insert.
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM patients WHERE id = $1`, t.PatientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		err = interfaces.ErrNotFound
		return err
	}
	if err != nil {
		return err
	}

	const query = `INSERT INTO patient_transactions
	(patient_id, date, description, amount, is_deposit, is_ambulance, created_by)
	VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query,
		t.PatientID, t.Date, t.Description, t.Amount, t.IsDeposit, t.IsAmbulance, t.CreatedBy).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return err
	}

	if err = completeInsertEntry(entry, t.ID, t); err != nil {
		return err
	}
	if err = insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func (s *Store) InsertGeneralExpense(ctx context.Context, e *models.GeneralExpense, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO general_expenses
	(date, category, description, patient_name, amount, created_by)
	VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query,
		e.Date, e.Category, e.Description, e.PatientName, e.Amount, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return err
	}

	if err = completeInsertEntry(entry, e.ID, e); err != nil {
		return err
	}
	if err = insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// completeInsertEntry fills the audit entry fields only known after the
// entity insert: the assigned record id and the new-state snapshot.
func completeInsertEntry(entry *models.AuditEntry, recordID int64, newState any) error {
	entry.RecordID = recordID
	data, err := json.Marshal(newState)
	if err != nil {
		return err
	}
	entry.NewValues = data
	return nil
}

func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry *models.AuditEntry) error {
	const query = `INSERT INTO audit_log (username, action, table_name, record_id, old_values, new_values)
	VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, timestamp`

	return tx.QueryRowContext(ctx, query,
		entry.Username, entry.Action, entry.TableName, entry.RecordID,
		[]byte(entry.OldValues), []byte(entry.NewValues)).
		Scan(&entry.ID, &entry.Timestamp)
}

func (s *Store) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	const query = `SELECT id, name, type, admission_date, created_by, created_at
	FROM patients WHERE id = $1`

	var p models.Patient
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.Type, &p.AdmissionDate, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]models.Patient, error) {
	const query = `SELECT id, name, type, admission_date, created_by, created_at
	FROM patients ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.AdmissionDate, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (s *Store) ListPatientTransactions(ctx context.Context, patientID int64) ([]models.PatientTransaction, error) {
	const query = `SELECT id, patient_id, date, description, amount, is_deposit, is_ambulance, created_by, created_at
	FROM patient_transactions WHERE patient_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.PatientTransaction
	for rows.Next() {
		var t models.PatientTransaction
		if err := rows.Scan(&t.ID, &t.PatientID, &t.Date, &t.Description, &t.Amount,
			&t.IsDeposit, &t.IsAmbulance, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *Store) ListGeneralExpenses(ctx context.Context) ([]models.GeneralExpense, error) {
	const query = `SELECT id, date, category, description, patient_name, amount, created_by, created_at
	FROM general_expenses ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.GeneralExpense
	for rows.Next() {
		var e models.GeneralExpense
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Description, &e.PatientName,
			&e.Amount, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) RecentAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	const query = `SELECT id, username, action, table_name, record_id, old_values, new_values, timestamp
	FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var oldValues, newValues []byte
		if err := rows.Scan(&entry.ID, &entry.Username, &entry.Action, &entry.TableName,
			&entry.RecordID, &oldValues, &newValues, &entry.Timestamp); err != nil {
			return nil, err
		}
		entry.OldValues = oldValues
		entry.NewValues = newValues
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) SumDeposits(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM patient_transactions WHERE is_deposit = TRUE`
	return s.sum(ctx, query)
}

func (s *Store) SumPatientExpenses(ctx context.Context) (decimal.Decimal, error) {
	// Ambulance-flagged expenses stay out of this aggregate by policy.
	const query = `SELECT COALESCE(SUM(amount), 0) FROM patient_transactions
	WHERE is_deposit = FALSE AND is_ambulance = FALSE`
	return s.sum(ctx, query)
}

func (s *Store) SumGeneralExpenses(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM general_expenses`
	return s.sum(ctx, query)
}

func (s *Store) sum(ctx context.Context, query string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
