package tracking

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/techtrack/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Percent returns reported/planned as a percentage rounded to one
// decimal place, halves rounded up. A missing plan or a non-positive
// report yields 0; results are capped at 100.
func Percent(reported, planned int64) decimal.Decimal {
	if planned <= 0 || reported <= 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(reported).Mul(hundred).Div(decimal.NewFromInt(planned)).Round(1)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// Progress computes percent complete against the planned quantities.
type Progress struct {
	Planned PlannedStore
}

func NewProgress(planned PlannedStore) *Progress { return &Progress{Planned: planned} }

// PercentComplete looks up the planned quantity for exactly key and
// returns Percent(reported, planned). No plan is not an error.
func (p *Progress) PercentComplete(ctx context.Context, key model.ResultKey, reported int64) (decimal.Decimal, error) {
	planned, ok, err := p.Planned.PlannedQuantity(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return Percent(reported, planned), nil
}
