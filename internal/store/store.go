// Package store defines the persistence interface for the bookkeeping
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/p2pdesk/arb-engine/internal/model"
)

// Store is the persistence interface. Row lookups (by ID, by symbol, the
// active cycle, the open day) return (nil, nil) when the row is absent;
// absence is a domain state, not a storage failure.
//
// The composite operations (OpenDay, ApplySale, CloseDay) apply every
// cross-entity update of one logical action all-or-nothing: transactional
// in PostgreSQL, single-lock in memory. Callers pass fully computed
// post-state; the store only persists it.
type Store interface {
	// --- Vault holdings ---

	// GetHolding retrieves one holding by symbol.
	GetHolding(ctx context.Context, symbol string) (*model.Holding, error)

	// ListHoldings returns all holdings, largest value first.
	ListHoldings(ctx context.Context) ([]model.Holding, error)

	// PutHolding inserts or replaces a holding.
	PutHolding(ctx context.Context, h *model.Holding) error

	// --- Cycles ---

	// CreateCycle persists a new cycle.
	CreateCycle(ctx context.Context, c *model.Cycle) error

	// GetCycle retrieves a cycle by ID.
	GetCycle(ctx context.Context, id string) (*model.Cycle, error)

	// GetActiveCycle returns the active cycle, or (nil, nil).
	GetActiveCycle(ctx context.Context) (*model.Cycle, error)

	// GetLatestCycle returns the highest-sequence cycle, or (nil, nil).
	GetLatestCycle(ctx context.Context) (*model.Cycle, error)

	// ListCycles returns up to limit cycles, newest first.
	ListCycles(ctx context.Context, limit int) ([]model.Cycle, error)

	// MaxCycleSequence returns the highest sequence number, 0 when empty.
	MaxCycleSequence(ctx context.Context) (int, error)

	// UpdateCycle replaces a cycle's mutable fields.
	UpdateCycle(ctx context.Context, c *model.Cycle) error

	// --- Days ---

	// GetDay retrieves a day by ID.
	GetDay(ctx context.Context, id string) (*model.Day, error)

	// GetOpenDay returns the cycle's open day, or (nil, nil).
	GetOpenDay(ctx context.Context, cycleID string) (*model.Day, error)

	// ListDays returns a cycle's days ordered by day number.
	ListDays(ctx context.Context, cycleID string) ([]model.Day, error)

	// MaxDayNumber returns the highest day number in a cycle, 0 when empty.
	MaxDayNumber(ctx context.Context, cycleID string) (int, error)

	// --- Sales (immutable ledger) ---

	// ListSalesByDay returns up to limit of a day's sales, newest first.
	// limit <= 0 means no limit.
	ListSalesByDay(ctx context.Context, dayID string, limit int) ([]model.Sale, error)

	// --- Composite operations ---

	// OpenDay inserts the day and updates the funding holding atomically.
	OpenDay(ctx context.Context, day *model.Day, holding *model.Holding) error

	// ApplySale appends the immutable sale and updates the day and cycle
	// aggregates atomically.
	ApplySale(ctx context.Context, sale *model.Sale, day *model.Day, cycle *model.Cycle) error

	// CloseDay finalizes the day, returns unsold inventory to the holding,
	// and updates the cycle counters atomically.
	CloseDay(ctx context.Context, day *model.Day, holding *model.Holding, cycle *model.Cycle) error
}
