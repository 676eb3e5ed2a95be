package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GeneralExpense is an institutional expense not tied to a patient account.
// PatientName is free text only: it may name a patient the system never
// tracked, or stay empty, and is deliberately not a foreign key.
type GeneralExpense struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	PatientName string          `json:"patient_name"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}
