package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Span is the canonical whole-month + remainder-day decomposition of a stay.
// Replaying SpanBetween on the same dates always reproduces it.
type Span struct {
	Months int
	Days   int
}

// SpanBetween decomposes the stay [start, end] into whole calendar months
// plus leftover days. Calendar-month arithmetic, not 30-day buckets: months
// are stepped with AddDate and the remainder is whatever days are left.
// Inputs are calendar dates at midnight UTC with end after start; validation
// happens before the core is invoked.
func SpanBetween(start, end time.Time) Span {
	months := 0
	cur := start
	for {
		next := cur.AddDate(0, 1, 0)
		if next.After(end) {
			break
		}
		cur = next
		months++
	}
	days := int(end.Sub(cur).Hours() / 24)
	return Span{Months: months, Days: days}
}

// Price applies monthly and daily rates to the span at full precision.
// Rounding to two decimals happens only at response boundaries so that
// summing line items never compounds rounding error.
func (s Span) Price(monthly, daily decimal.Decimal) decimal.Decimal {
	m := monthly.Mul(decimal.NewFromInt(int64(s.Months)))
	d := daily.Mul(decimal.NewFromInt(int64(s.Days)))
	return m.Add(d)
}

// Range is an inclusive calendar date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two inclusive ranges share at least one day.
// Touching endpoints conflict: a checkout day equal to a new checkin day
// counts as overlapping. Mirrors the SQL predicate used at commit time.
func (r Range) Overlaps(o Range) bool {
	return !(r.End.Before(o.Start) || o.End.Before(r.Start))
}

// Date builds a calendar date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
