package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/p2pdesk/arb-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	holdings map[string]*model.Holding
	cycles   map[string]*model.Cycle
	days     map[string]*model.Day
	sales    []model.Sale
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holdings: make(map[string]*model.Holding),
		cycles:   make(map[string]*model.Cycle),
		days:     make(map[string]*model.Day),
	}
}

// --- Vault holdings ---

func (s *MemoryStore) GetHolding(_ context.Context, symbol string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[symbol]
	if !ok {
		return nil, nil
	}
	copy := *h
	return &copy, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Holding, 0, len(s.holdings))
	for _, h := range s.holdings {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value().GreaterThan(out[j].Value())
	})
	return out, nil
}

func (s *MemoryStore) PutHolding(_ context.Context, h *model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *h
	s.holdings[h.Symbol] = &copy
	return nil
}

// --- Cycles ---

func (s *MemoryStore) CreateCycle(_ context.Context, c *model.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Status == model.CycleActive {
		for _, existing := range s.cycles {
			if existing.Status == model.CycleActive {
				return fmt.Errorf("cycle #%d is already active", existing.SequenceNumber)
			}
		}
	}

	copy := *c
	s.cycles[c.ID] = &copy
	return nil
}

func (s *MemoryStore) GetCycle(_ context.Context, id string) (*model.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cycles[id]
	if !ok {
		return nil, nil
	}
	copy := *c
	return &copy, nil
}

func (s *MemoryStore) GetActiveCycle(_ context.Context) (*model.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.cycles {
		if c.Status == model.CycleActive {
			copy := *c
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetLatestCycle(_ context.Context) (*model.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Cycle
	for _, c := range s.cycles {
		if latest == nil || c.SequenceNumber > latest.SequenceNumber {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	copy := *latest
	return &copy, nil
}

func (s *MemoryStore) ListCycles(_ context.Context, limit int) ([]model.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Cycle, 0, len(s.cycles))
	for _, c := range s.cycles {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceNumber > out[j].SequenceNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MaxCycleSequence(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, c := range s.cycles {
		if c.SequenceNumber > max {
			max = c.SequenceNumber
		}
	}
	return max, nil
}

func (s *MemoryStore) UpdateCycle(_ context.Context, c *model.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateCycleLocked(c)
}

func (s *MemoryStore) updateCycleLocked(c *model.Cycle) error {
	if _, ok := s.cycles[c.ID]; !ok {
		return fmt.Errorf("cycle %s not found", c.ID)
	}
	copy := *c
	s.cycles[c.ID] = &copy
	return nil
}

// --- Days ---

func (s *MemoryStore) GetDay(_ context.Context, id string) (*model.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[id]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (s *MemoryStore) GetOpenDay(_ context.Context, cycleID string) (*model.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.days {
		if d.CycleID == cycleID && d.Status == model.DayOpen {
			copy := *d
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListDays(_ context.Context, cycleID string) ([]model.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Day
	for _, d := range s.days {
		if d.CycleID == cycleID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DayNumber < out[j].DayNumber
	})
	return out, nil
}

func (s *MemoryStore) MaxDayNumber(_ context.Context, cycleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, d := range s.days {
		if d.CycleID == cycleID && d.DayNumber > max {
			max = d.DayNumber
		}
	}
	return max, nil
}

// --- Sales ---

func (s *MemoryStore) ListSalesByDay(_ context.Context, dayID string, limit int) ([]model.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Sale
	for i := len(s.sales) - 1; i >= 0; i-- { // newest first
		if s.sales[i].DayID == dayID {
			out = append(out, s.sales[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- Composite operations (single lock = atomic) ---

func (s *MemoryStore) OpenDay(_ context.Context, day *model.Day, holding *model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.days {
		if d.CycleID == day.CycleID && d.Status == model.DayOpen {
			return fmt.Errorf("cycle %s already has an open day", day.CycleID)
		}
	}

	dayCopy := *day
	s.days[day.ID] = &dayCopy
	holdingCopy := *holding
	s.holdings[holding.Symbol] = &holdingCopy
	return nil
}

func (s *MemoryStore) ApplySale(_ context.Context, sale *model.Sale, day *model.Day, cycle *model.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.days[day.ID]; !ok {
		return fmt.Errorf("day %s not found", day.ID)
	}
	if err := s.updateCycleLocked(cycle); err != nil {
		return err
	}

	s.sales = append(s.sales, *sale)
	dayCopy := *day
	s.days[day.ID] = &dayCopy
	return nil
}

func (s *MemoryStore) CloseDay(_ context.Context, day *model.Day, holding *model.Holding, cycle *model.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.days[day.ID]; !ok {
		return fmt.Errorf("day %s not found", day.ID)
	}
	if err := s.updateCycleLocked(cycle); err != nil {
		return err
	}

	dayCopy := *day
	s.days[day.ID] = &dayCopy
	holdingCopy := *holding
	s.holdings[holding.Symbol] = &holdingCopy
	return nil
}
