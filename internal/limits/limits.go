// Package limits enforces the desk's sales-per-day discipline.
//
// The operating playbook splits a day's inventory across several small
// sales rather than one large disposal. The limiter caps how many sales a
// day may record (hard limit) and tracks whether the day has reached its
// minimum target (soft, surfaced on the dashboard only).
package limits

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrDailySaleLimit is returned when a sale would exceed the per-day
// maximum.
var ErrDailySaleLimit = errors.New("limits: daily sale limit reached")

// SaleLimiter holds the per-day sale count bounds.
type SaleLimiter struct {
	// MinPerDay is the target number of sales per day. Not enforced;
	// reported as a dashboard hint.
	MinPerDay int

	// MaxPerDay is the hard cap on sales per day. Zero disables the cap.
	MaxPerDay int
}

// NewSaleLimiter creates a limiter with the given bounds. A min above max
// is lowered to max.
func NewSaleLimiter(minPerDay, maxPerDay int) *SaleLimiter {
	if minPerDay < 0 {
		minPerDay = 0
	}
	if maxPerDay > 0 && minPerDay > maxPerDay {
		minPerDay = maxPerDay
	}
	return &SaleLimiter{MinPerDay: minPerDay, MaxPerDay: maxPerDay}
}

// CheckCanSell validates that a day with salesSoFar recorded sales may
// record one more.
func (l *SaleLimiter) CheckCanSell(salesSoFar int) error {
	if l.MaxPerDay > 0 && salesSoFar >= l.MaxPerDay {
		return ErrDailySaleLimit
	}
	return nil
}

// Remaining returns how many sales the day may still record, or -1 when
// the cap is disabled.
func (l *SaleLimiter) Remaining(salesSoFar int) int {
	if l.MaxPerDay <= 0 {
		return -1
	}
	r := l.MaxPerDay - salesSoFar
	if r < 0 {
		return 0
	}
	return r
}

// TargetMet reports whether the day has reached its minimum sale target.
func (l *SaleLimiter) TargetMet(salesSoFar int) bool {
	return salesSoFar >= l.MinPerDay
}

// SuggestedSliceQuantity splits the remaining inventory evenly across the
// sales still allowed, giving the operator a per-sale size hint. Returns
// the full remainder when the cap is disabled or already reached.
func (l *SaleLimiter) SuggestedSliceQuantity(remaining decimal.Decimal, salesSoFar int) decimal.Decimal {
	slots := l.Remaining(salesSoFar)
	if slots <= 0 {
		return remaining
	}
	return remaining.Div(decimal.NewFromInt(int64(slots))).Round(8)
}
