package limits

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckCanSell_UnderCap(t *testing.T) {
	limiter := NewSaleLimiter(5, 8)

	if err := limiter.CheckCanSell(7); err != nil {
		t.Errorf("expected no error at 7/8 sales, got %v", err)
	}
}

func TestCheckCanSell_AtCap(t *testing.T) {
	limiter := NewSaleLimiter(5, 8)

	if err := limiter.CheckCanSell(8); err != ErrDailySaleLimit {
		t.Errorf("expected ErrDailySaleLimit at 8/8 sales, got %v", err)
	}
}

func TestCheckCanSell_CapDisabled(t *testing.T) {
	limiter := NewSaleLimiter(5, 0)

	if err := limiter.CheckCanSell(1000); err != nil {
		t.Errorf("disabled cap should allow unlimited sales, got %v", err)
	}
}

func TestRemaining(t *testing.T) {
	limiter := NewSaleLimiter(5, 8)

	if got := limiter.Remaining(3); got != 5 {
		t.Errorf("Remaining(3) = %d, want 5", got)
	}
	if got := limiter.Remaining(9); got != 0 {
		t.Errorf("Remaining(9) = %d, want 0", got)
	}

	open := NewSaleLimiter(5, 0)
	if got := open.Remaining(3); got != -1 {
		t.Errorf("Remaining with disabled cap = %d, want -1", got)
	}
}

func TestTargetMet(t *testing.T) {
	limiter := NewSaleLimiter(5, 8)

	if limiter.TargetMet(4) {
		t.Error("4 sales should not meet a min target of 5")
	}
	if !limiter.TargetMet(5) {
		t.Error("5 sales should meet a min target of 5")
	}
}

func TestNewSaleLimiter_MinClampedToMax(t *testing.T) {
	limiter := NewSaleLimiter(10, 8)
	if limiter.MinPerDay != 8 {
		t.Errorf("min should clamp to max, got %d", limiter.MinPerDay)
	}
}

func TestSuggestedSliceQuantity(t *testing.T) {
	limiter := NewSaleLimiter(5, 8)

	// 0.004 remaining across 4 remaining slots → 0.001 per sale.
	slice := limiter.SuggestedSliceQuantity(d(0.004), 4)
	if !slice.Equal(d(0.001)) {
		t.Errorf("expected 0.001, got %s", slice)
	}

	// Cap reached: suggest the full remainder.
	slice = limiter.SuggestedSliceQuantity(d(0.004), 8)
	if !slice.Equal(d(0.004)) {
		t.Errorf("expected full remainder, got %s", slice)
	}
}
