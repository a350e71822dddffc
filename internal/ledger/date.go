package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the wire form of a calendar day.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates t to its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return DateOf(t, time.UTC), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

// OnDate returns the operations whose CreatedAt falls on day d in loc,
// preserving recorded order. The result is never nil.
func OnDate(ops []Operation, d Date, loc *time.Location) []Operation {
	out := make([]Operation, 0)
	for _, op := range ops {
		if DateOf(op.CreatedAt, loc) == d {
			out = append(out, op)
		}
	}
	return out
}
