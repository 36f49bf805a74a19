// Package calendar provides a calendar date type and the whole-day
// arithmetic used to decide whether a rental came back late.
//
// A Date carries no time of day.  Every value is normalised to midnight
// UTC, which is the single reference day boundary for all comparisons.
// Converting a time.Time into a Date keeps the civil date the time has
// in its own location, so "2024-01-10 23:30 -03:00" is the 10th, not the
// 11th, even though the same instant is already the 11th in UTC.
package calendar

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strings"
	"time"
)

// ISOLayout is the wire format of dates in JSON bodies and query strings.
const ISOLayout = "2006-01-02"

// DisplayLayout is how dates are shown to dashboard users.
const DisplayLayout = "02/01/2006"

const day = 24 * time.Hour

// Date is a calendar date normalised to midnight UTC.
type Date struct {
	t time.Time
}

// New builds a Date from its components.  Out of range values are
// normalised the way time.Date does (January 32 becomes February 1).
func New(year int, month time.Month, dayOfMonth int) Date {
	return Date{t: time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)}
}

// Of returns the civil date of t in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return New(y, m, d)
}

// Today returns the current civil date in loc.  A nil loc means UTC.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Of(time.Now().In(loc))
}

// Parse reads a YYYY-MM-DD date.  A trailing time component, as sent by
// some clients ("2024-01-08T00:00:00Z"), is accepted and its civil date
// kept.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("calendar: empty date")
	}
	if t, err := time.Parse(ISOLayout, s); err == nil {
		return Of(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Of(t), nil
	}
	return Date{}, fmt.Errorf("calendar: invalid date %q, want YYYY-MM-DD", s)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns the date as midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Format renders d as YYYY-MM-DD.
func (d Date) Format() string { return d.t.Format(ISOLayout) }

// String implements fmt.Stringer.
func (d Date) String() string { return d.Format() }

// Display renders d as dd/mm/yyyy.
func (d Date) Display() string { return d.t.Format(DisplayLayout) }

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	y, m, dd := d.t.Date()
	return New(y, m, dd+n)
}

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// DaysBetween returns the number of whole days from expected to actual,
// rounded up.  It is positive when actual falls after expected (late),
// zero on the same day and negative when actual is earlier.
func DaysBetween(expected, actual Date) int {
	diff := Of(actual.t).t.Sub(Of(expected.t).t)
	return int(math.Ceil(diff.Hours() / day.Hours()))
}

// DisplayPtr renders an optional date, using placeholder when it is absent.
func DisplayPtr(d *Date, placeholder string) string {
	if d == nil || d.IsZero() {
		return placeholder
	}
	return d.Display()
}

// MarshalJSON encodes d as "YYYY-MM-DD"; the zero Date encodes as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", an RFC 3339 timestamp or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("calendar: date must be a JSON string, got %s", s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores d as a DATE column.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(), nil
}

// Scan reads a DATE column.  With parseTime=true the driver hands over a
// time.Time; without it the raw bytes are parsed.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = Of(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("calendar: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(ISOLayout) {
		s = s[:len(ISOLayout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NullDate is a nullable Date for optional columns such as the actual
// return date.
type NullDate struct {
	Date  Date
	Valid bool
}

// Scan implements sql.Scanner.
func (n *NullDate) Scan(src any) error {
	if src == nil {
		n.Date, n.Valid = Date{}, false
		return nil
	}
	if err := n.Date.Scan(src); err != nil {
		return err
	}
	n.Valid = !n.Date.IsZero()
	return nil
}

// Value implements driver.Valuer.
func (n NullDate) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Date.Value()
}

// Ptr returns the date or nil when it is absent.
func (n NullDate) Ptr() *Date {
	if !n.Valid {
		return nil
	}
	d := n.Date
	return &d
}

// NullFrom wraps an optional date for storage.
func NullFrom(d *Date) NullDate {
	if d == nil || d.IsZero() {
		return NullDate{}
	}
	return NullDate{Date: *d, Valid: true}
}
