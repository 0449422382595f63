/**
 * @description
 * Billing period (calendar year-month) helpers.
 */
package domain

import (
	"fmt"
	"time"
)

// Period identifies a billing cycle as a calendar year-month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t, evaluated in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses the "2006-01" form.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY-MM", s)
	}
	return PeriodOf(t), nil
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start returns midnight of the first day of the period in loc.
func (p Period) Start(loc *time.Location) time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// Next returns the following period.
func (p Period) Next() Period {
	return PeriodOf(p.Start(time.UTC).AddDate(0, 1, 0))
}

// DueDate returns the given day of the period as a civil date, clamped to
// the period's last day.
func (p Period) DueDate(day int) time.Time {
	last := p.Next().Start(time.UTC).AddDate(0, 0, -1).Day()
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate returns the calendar day of t as observed in loc, expressed as
// midnight UTC. Due dates and payment dates are stored this way.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
