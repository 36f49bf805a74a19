package rental

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/model"
)

// DefaultLateFeePerDay is the flat penalty per overdue day the shop has
// been charging.  Whether the fee should instead follow the class value
// is still an open policy question, so it is configurable.
var DefaultLateFeePerDay = decimal.NewFromInt(2)

// Late fee policies accepted by NewFeeSchedule.
const (
	PolicyFlat  = "flat"
	PolicyClass = "class"
)

// FeeSchedule maps a class to the penalty charged per overdue day.
type FeeSchedule interface {
	Rate(class model.Class) decimal.Decimal
}

// FlatRate charges the same amount per day whatever the class.
type FlatRate struct {
	PerDay decimal.Decimal
}

func (f FlatRate) Rate(model.Class) decimal.Decimal { return f.PerDay }

// ClassRate charges a fraction (or multiple) of the class value per day.
type ClassRate struct {
	Factor decimal.Decimal
}

func (c ClassRate) Rate(class model.Class) decimal.Decimal {
	return class.Value.Mul(c.Factor)
}

// NewFeeSchedule builds the schedule named by policy.  An empty policy
// means flat.
func NewFeeSchedule(policy string, perDay, factor decimal.Decimal) (FeeSchedule, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", PolicyFlat:
		if perDay.IsNegative() {
			return nil, fmt.Errorf("late fee per day must not be negative, got %s", perDay)
		}
		return FlatRate{PerDay: perDay}, nil
	case PolicyClass:
		if factor.IsNegative() {
			return nil, fmt.Errorf("late fee class factor must not be negative, got %s", factor)
		}
		return ClassRate{Factor: factor}, nil
	default:
		return nil, fmt.Errorf("unknown late fee policy %q", policy)
	}
}
