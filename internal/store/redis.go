package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p2pdesk/arb-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot dashboard reads: the holdings list, the active cycle,
// and the open day. Writes go to the primary store and invalidate the
// affected keys; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func holdingsKey() string              { return "vault:holdings" }
func activeCycleKey() string           { return "cycle:active" }
func openDayKey(cycleID string) string { return fmt.Sprintf("day:open:%s", cycleID) }

// --- Read-through ---

func (s *CachedStore) ListHoldings(ctx context.Context) ([]model.Holding, error) {
	data, err := s.rdb.Get(ctx, holdingsKey()).Bytes()
	if err == nil {
		var holdings []model.Holding
		if json.Unmarshal(data, &holdings) == nil {
			return holdings, nil
		}
	}

	holdings, err := s.primary.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(holdings); err == nil {
		s.rdb.Set(ctx, holdingsKey(), data, s.ttl)
	}
	return holdings, nil
}

func (s *CachedStore) GetActiveCycle(ctx context.Context) (*model.Cycle, error) {
	data, err := s.rdb.Get(ctx, activeCycleKey()).Bytes()
	if err == nil {
		var c model.Cycle
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	c, err := s.primary.GetActiveCycle(ctx)
	if err != nil || c == nil {
		// Absence is not cached: a stale "no active cycle" would block
		// day opens right after a cycle start.
		return c, err
	}

	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, activeCycleKey(), data, s.ttl)
	}
	return c, nil
}

func (s *CachedStore) GetOpenDay(ctx context.Context, cycleID string) (*model.Day, error) {
	data, err := s.rdb.Get(ctx, openDayKey(cycleID)).Bytes()
	if err == nil {
		var d model.Day
		if json.Unmarshal(data, &d) == nil {
			return &d, nil
		}
	}

	d, err := s.primary.GetOpenDay(ctx, cycleID)
	if err != nil || d == nil {
		return d, err
	}

	if data, err := json.Marshal(d); err == nil {
		s.rdb.Set(ctx, openDayKey(cycleID), data, s.ttl)
	}
	return d, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) PutHolding(ctx context.Context, h *model.Holding) error {
	if err := s.primary.PutHolding(ctx, h); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey())
	return nil
}

func (s *CachedStore) CreateCycle(ctx context.Context, c *model.Cycle) error {
	if err := s.primary.CreateCycle(ctx, c); err != nil {
		return err
	}
	s.rdb.Del(ctx, activeCycleKey())
	return nil
}

func (s *CachedStore) UpdateCycle(ctx context.Context, c *model.Cycle) error {
	if err := s.primary.UpdateCycle(ctx, c); err != nil {
		return err
	}
	s.rdb.Del(ctx, activeCycleKey())
	return nil
}

func (s *CachedStore) OpenDay(ctx context.Context, day *model.Day, holding *model.Holding) error {
	if err := s.primary.OpenDay(ctx, day, holding); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(), openDayKey(day.CycleID))
	return nil
}

func (s *CachedStore) ApplySale(ctx context.Context, sale *model.Sale, day *model.Day, cycle *model.Cycle) error {
	if err := s.primary.ApplySale(ctx, sale, day, cycle); err != nil {
		return err
	}
	s.rdb.Del(ctx, activeCycleKey(), openDayKey(day.CycleID))
	return nil
}

func (s *CachedStore) CloseDay(ctx context.Context, day *model.Day, holding *model.Holding, cycle *model.Cycle) error {
	if err := s.primary.CloseDay(ctx, day, holding, cycle); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(), activeCycleKey(), openDayKey(day.CycleID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetHolding(ctx context.Context, symbol string) (*model.Holding, error) {
	return s.primary.GetHolding(ctx, symbol)
}

func (s *CachedStore) GetCycle(ctx context.Context, id string) (*model.Cycle, error) {
	return s.primary.GetCycle(ctx, id)
}

func (s *CachedStore) GetLatestCycle(ctx context.Context) (*model.Cycle, error) {
	return s.primary.GetLatestCycle(ctx)
}

func (s *CachedStore) ListCycles(ctx context.Context, limit int) ([]model.Cycle, error) {
	return s.primary.ListCycles(ctx, limit)
}

func (s *CachedStore) MaxCycleSequence(ctx context.Context) (int, error) {
	return s.primary.MaxCycleSequence(ctx)
}

func (s *CachedStore) GetDay(ctx context.Context, id string) (*model.Day, error) {
	return s.primary.GetDay(ctx, id)
}

func (s *CachedStore) ListDays(ctx context.Context, cycleID string) ([]model.Day, error) {
	return s.primary.ListDays(ctx, cycleID)
}

func (s *CachedStore) MaxDayNumber(ctx context.Context, cycleID string) (int, error) {
	return s.primary.MaxDayNumber(ctx, cycleID)
}

func (s *CachedStore) ListSalesByDay(ctx context.Context, dayID string, limit int) ([]model.Sale, error) {
	return s.primary.ListSalesByDay(ctx, dayID, limit)
}
