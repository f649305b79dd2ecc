package engine

import "errors"

// Validation failures shared by the vault, cycle, and day services. Each is
// raised synchronously before any state mutation; none are transient, so
// none are retried. Callers wrap them with the offending field and the
// current vs requested values.
var (
	// ErrInvalidAmount is returned for non-positive or malformed numeric
	// input (quantity, price, rate, capital).
	ErrInvalidAmount = errors.New("engine: amount must be positive")

	// ErrUnknownAsset is returned when a symbol has no vault holding.
	ErrUnknownAsset = errors.New("engine: unknown asset")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the
	// holding's quantity. The balance is never clamped to zero.
	ErrInsufficientBalance = errors.New("engine: insufficient vault balance")

	// ErrCycleAlreadyActive is returned when starting a cycle while one
	// is active. Exactly one cycle may be active system-wide.
	ErrCycleAlreadyActive = errors.New("engine: a cycle is already active")

	// ErrNoActiveCycle is returned by operations that require an active
	// cycle when none exists.
	ErrNoActiveCycle = errors.New("engine: no active cycle")

	// ErrOpenDayExists is returned when closing a cycle that still has an
	// open operating day.
	ErrOpenDayExists = errors.New("engine: cycle has an open day")

	// ErrCycleHasNoCapital is returned when opening a day against a cycle
	// whose initial capital snapshot is zero.
	ErrCycleHasNoCapital = errors.New("engine: cycle has no capital")

	// ErrDayAlreadyOpen is returned when opening a day while the cycle
	// already has one open.
	ErrDayAlreadyOpen = errors.New("engine: a day is already open")

	// ErrNoOpenDay is returned by sale and close-day operations when the
	// active cycle has no open day.
	ErrNoOpenDay = errors.New("engine: no open day")

	// ErrInsufficientQuantity is returned when a sale exceeds the day's
	// remaining quantity.
	ErrInsufficientQuantity = errors.New("engine: insufficient quantity remaining")

	// ErrBelowBreakeven is returned when a sale price sits below the
	// day's break-even price. Loss-making sales are rejected outright,
	// not warned about.
	ErrBelowBreakeven = errors.New("engine: sell price below break-even")

	// ErrTooManySales is returned when a sale would exceed the configured
	// per-day sale limit.
	ErrTooManySales = errors.New("engine: daily sale limit reached")
)
