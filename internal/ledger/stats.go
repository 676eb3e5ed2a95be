package ledger

import (
	"context"

	"github.com/sheikh-saqib/hospital-ledger-system/internal/apperrors"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/interfaces"
	"github.com/sheikh-saqib/hospital-ledger-system/internal/models"
)

// Aggregator derives the dashboard totals straight from the store; nothing
// is cached, every call reflects committed state.
type Aggregator struct {
	store interfaces.RecordStore
}

func NewAggregator(store interfaces.RecordStore) *Aggregator {
	return &Aggregator{store: store}
}

// ComputeStats returns the running totals and the net balance:
// deposits minus patient expenses minus general expenses. Ambulance-flagged
// transactions count toward neither expense total.
func (a *Aggregator) ComputeStats(ctx context.Context) (*models.Stats, error) {
	deposits, err := a.store.SumDeposits(ctx)
	if err != nil {
		return nil, apperrors.Storage("could not sum deposits", err)
	}
	patientExpenses, err := a.store.SumPatientExpenses(ctx)
	if err != nil {
		return nil, apperrors.Storage("could not sum patient expenses", err)
	}
	generalExpenses, err := a.store.SumGeneralExpenses(ctx)
	if err != nil {
		return nil, apperrors.Storage("could not sum general expenses", err)
	}

	return &models.Stats{
		TotalDeposits:        deposits,
		TotalPatientExpenses: patientExpenses,
		TotalGeneralExpenses: generalExpenses,
		NetBalance:           deposits.Sub(patientExpenses).Sub(generalExpenses),
	}, nil
}
