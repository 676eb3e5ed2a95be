package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PatientTransaction is one financial movement on a patient's account.
// Amount is always a non-negative magnitude; IsDeposit carries the direction
// (true = funds received, false = expense charged). IsAmbulance marks an
// expense as ambulance-related, which keeps it out of the patient-expense
// aggregate entirely.
type PatientTransaction struct {
	ID          int64           `json:"id"`
	PatientID   int64           `json:"patient_id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	IsDeposit   bool            `json:"is_deposit"`
	IsAmbulance bool            `json:"is_ambulance"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}
