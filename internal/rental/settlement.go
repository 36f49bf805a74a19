package rental

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
)

// Snapshot is everything needed to settle one rental.  The precomputed
// fields carry what the backend already stored; when present they are
// authoritative and the local computation only fills the gaps.
type Snapshot struct {
	Expected  calendar.Date
	Actual    *calendar.Date
	BaseValue decimal.Decimal
	Class     model.Class

	PrecomputedLateFee *decimal.Decimal
	PrecomputedIsLate  *bool
}

// Settlement is the derived outcome of a returned rental.
type Settlement struct {
	DaysLate int             `json:"days_late"`
	IsLate   bool            `json:"is_late"`
	LateFee  decimal.Decimal `json:"late_fee"`
	TotalDue decimal.Decimal `json:"total_due"`
}

// Calculator computes settlements with a fee schedule.
type Calculator struct {
	Fees FeeSchedule
}

// NewCalculator returns a Calculator using fees, or the flat default
// schedule when fees is nil.
func NewCalculator(fees FeeSchedule) Calculator {
	if fees == nil {
		fees = FlatRate{PerDay: DefaultLateFeePerDay}
	}
	return Calculator{Fees: fees}
}

// Calculate settles s.  It fails with ErrOutstanding when the item has
// not come back; an outstanding rental has no lateness, not zero.
func (c Calculator) Calculate(s Snapshot) (Settlement, error) {
	if s.Actual == nil || s.Actual.IsZero() {
		return Settlement{}, ErrOutstanding
	}
	fees := c.Fees
	if fees == nil {
		fees = FlatRate{PerDay: DefaultLateFeePerDay}
	}

	diff := calendar.DaysBetween(s.Expected, *s.Actual)
	isLate := diff > 0
	fee := decimal.Zero
	if isLate {
		fee = decimal.NewFromInt(int64(diff)).Mul(fees.Rate(s.Class))
	}

	if s.PrecomputedLateFee != nil {
		fee = *s.PrecomputedLateFee
	}
	if s.PrecomputedIsLate != nil {
		isLate = *s.PrecomputedIsLate
	}

	return Settlement{
		DaysLate: diff,
		IsLate:   isLate,
		LateFee:  fee,
		TotalDue: s.BaseValue.Add(fee),
	}, nil
}

// SnapshotOf builds the snapshot of a stored rental, taking whatever
// late fee and lateness the rental already carries as precomputed.
func SnapshotOf(r *model.Rental, class model.Class) Snapshot {
	return Snapshot{
		Expected:           r.ExpectedReturn,
		Actual:             r.ActualReturn,
		BaseValue:          r.AmountCharged,
		Class:              class,
		PrecomputedLateFee: r.LateFee,
		PrecomputedIsLate:  r.IsLate,
	}
}
