package models

import "github.com/shopspring/decimal"

// Stats is the dashboard aggregate over the whole ledger.
//
// Ambulance-flagged expense transactions count toward neither
// TotalPatientExpenses nor TotalGeneralExpenses. That exclusion is policy:
// ambulance costs are tracked per patient but settled outside the balance.
type Stats struct {
	TotalDeposits        decimal.Decimal `json:"totalDeposits"`
	TotalPatientExpenses decimal.Decimal `json:"totalPatientExpenses"`
	TotalGeneralExpenses decimal.Decimal `json:"totalGeneralExpenses"`
	NetBalance           decimal.Decimal `json:"netBalance"`
}
