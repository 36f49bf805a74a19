// Package validation adapts go-playground/validator to echo and to the
// dashboard client, which validate the same request structs.
package validation

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/calendar"
)

type Validator struct{ v *validator.Validate }

// New returns a validator that understands calendar dates and decimals:
// a zero date fails "required" and decimals compare as numbers.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, ok := f.Interface().(calendar.Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.Format()
	}, calendar.Date{})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, ok := f.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error { return v.v.Struct(i) }

// Fields lists the failing fields of a validation error as
// "field: tag" pairs, or nil when err is not a validation error.
func Fields(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, msg)
	}
	return out
}
