// Package ops provides the HTTP handlers and business logic for the
// operating workflow: accounting cycles, operating days, and the
// immutable sale ledger.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/p2pdesk/arb-engine/internal/asset"
	"github.com/p2pdesk/arb-engine/internal/config"
	"github.com/p2pdesk/arb-engine/internal/engine"
	"github.com/p2pdesk/arb-engine/internal/limits"
	"github.com/p2pdesk/arb-engine/internal/metrics"
	"github.com/p2pdesk/arb-engine/internal/model"
	"github.com/p2pdesk/arb-engine/internal/store"
	"github.com/p2pdesk/arb-engine/internal/vault"
)

// Service handles cycle, day, and sale operations. State transitions are
// read-modify-write across several rows, so mutations are serialized with
// a mutex (single-instance); each transition is persisted through one
// all-or-nothing store call.
type Service struct {
	store   store.Store
	vault   *vault.Service
	limiter *limits.SaleLimiter
	trading config.Trading
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new operations service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, v *vault.Service, trading config.Trading, hub *WSHub) *Service {
	return &Service{
		store:   st,
		vault:   v,
		limiter: limits.NewSaleLimiter(trading.MinSalesPerDay, trading.MaxSalesPerDay),
		trading: trading,
		wsHub:   hub,
	}
}

// --- Request types ---

// StartCycleRequest is the JSON body for POST /api/v1/cycles/start.
// InitialCapital overrides the vault snapshot when set.
type StartCycleRequest struct {
	InitialCapital *decimal.Decimal `json:"initial_capital_usd,omitempty"`
}

// OpenDayRequest is the JSON body for POST /api/v1/days/open.
// TargetProfitPct and CommissionPct fall back to the configured defaults.
type OpenDayRequest struct {
	AssetSymbol     string           `json:"asset_symbol"`
	CapitalInvested decimal.Decimal  `json:"capital_usd_invested"`
	PurchaseRate    decimal.Decimal  `json:"purchase_rate"`
	TargetProfitPct *decimal.Decimal `json:"target_profit_pct,omitempty"`
	CommissionPct   *decimal.Decimal `json:"commission_pct,omitempty"`
}

// SaleRequest is the JSON body for POST /api/v1/sales.
type SaleRequest struct {
	SellPrice     decimal.Decimal  `json:"sell_price"`
	Quantity      decimal.Decimal  `json:"quantity"`
	CommissionPct *decimal.Decimal `json:"commission_pct,omitempty"`
}

// --- Cycle operations ---

// StartCycle opens a new accounting cycle. The initial capital is the
// vault's current valuation unless an explicit non-negative override is
// given. A zero-capital cycle is allowed; it just cannot open days until
// funded.
func (s *Service) StartCycle(ctx context.Context, override *decimal.Decimal) (*model.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.GetActiveCycle(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, engine.ErrCycleAlreadyActive
	}

	var capital decimal.Decimal
	if override != nil {
		if override.IsNegative() {
			return nil, engine.ErrInvalidAmount
		}
		capital = override.Round(2)
	} else {
		capital, err = s.vault.TotalValue(ctx)
		if err != nil {
			return nil, err
		}
	}

	seq, err := s.store.MaxCycleSequence(ctx)
	if err != nil {
		return nil, err
	}

	cycle := &model.Cycle{
		ID:             uuid.New().String(),
		SequenceNumber: seq + 1,
		StartDate:      time.Now().UTC(),
		InitialCapital: capital,
		FinalCapital:   decimal.Zero,
		TotalProfit:    decimal.Zero,
		Status:         model.CycleActive,
	}
	if err := s.store.CreateCycle(ctx, cycle); err != nil {
		return nil, err
	}

	metrics.CyclesStarted.Inc()
	return cycle, nil
}

// CloseCycle finalizes the active cycle against the vault's current
// valuation. Fails while the cycle still has an open day.
func (s *Service) CloseCycle(ctx context.Context) (*model.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycle, err := s.store.GetActiveCycle(ctx)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, engine.ErrNoActiveCycle
	}

	day, err := s.store.GetOpenDay(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	if day != nil {
		return nil, engine.ErrOpenDayExists
	}

	final, err := s.vault.TotalValue(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cycle.EndDate = &now
	cycle.FinalCapital = final
	cycle.TotalProfit = final.Sub(cycle.InitialCapital)
	cycle.ReturnPct = engine.ReturnPct(cycle.TotalProfit, cycle.InitialCapital)
	cycle.Status = model.CycleClosed

	if err := s.store.UpdateCycle(ctx, cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}

// --- Cycle HTTP handlers ---

// HandleStartCycle handles POST /api/v1/cycles/start
func (s *Service) HandleStartCycle(w http.ResponseWriter, r *http.Request) {
	var req StartCycleRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	cycle, err := s.StartCycle(r.Context(), req.InitialCapital)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("cycle started",
		"id", cycle.ID,
		"sequence", cycle.SequenceNumber,
		"initial_capital", cycle.InitialCapital.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "cycle_started", CycleID: cycle.ID})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cycle)
}

// HandleCloseCycle handles POST /api/v1/cycles/close
func (s *Service) HandleCloseCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.CloseCycle(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("cycle closed",
		"id", cycle.ID,
		"sequence", cycle.SequenceNumber,
		"final_capital", cycle.FinalCapital.String(),
		"total_profit", cycle.TotalProfit.String(),
		"return_pct", cycle.ReturnPct.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "cycle_closed",
			CycleID:   cycle.ID,
			NetProfit: cycle.TotalProfit.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cycle)
}

// HandleGetActiveCycle handles GET /api/v1/cycles/active
func (s *Service) HandleGetActiveCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.store.GetActiveCycle(r.Context())
	if err != nil {
		writeError(w, "failed to load active cycle", http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		writeError(w, "no active cycle", http.StatusNotFound)
		return
	}
	cycle.ReturnPct = engine.ReturnPct(cycle.TotalProfit, cycle.InitialCapital)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cycle)
}

// HandleListCycles handles GET /api/v1/cycles
// Returns cycle history, newest first, optionally capped by ?limit=N.
func (s *Service) HandleListCycles(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	cycles, err := s.store.ListCycles(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list cycles", http.StatusInternalServerError)
		return
	}
	if cycles == nil {
		cycles = []model.Cycle{}
	}
	for i := range cycles {
		cycles[i].ReturnPct = engine.ReturnPct(cycles[i].TotalProfit, cycles[i].InitialCapital)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cycles)
}

// HandleGetCycle handles GET /api/v1/cycles/{cycleID}
func (s *Service) HandleGetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.store.GetCycle(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeError(w, "failed to load cycle", http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		writeError(w, "cycle not found", http.StatusNotFound)
		return
	}
	cycle.ReturnPct = engine.ReturnPct(cycle.TotalProfit, cycle.InitialCapital)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cycle)
}

// statusFor maps domain errors to HTTP status codes: bad input is 400,
// unknown lookups 404, state conflicts 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, asset.ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrCycleAlreadyActive),
		errors.Is(err, engine.ErrNoActiveCycle),
		errors.Is(err, engine.ErrOpenDayExists),
		errors.Is(err, engine.ErrCycleHasNoCapital),
		errors.Is(err, engine.ErrDayAlreadyOpen),
		errors.Is(err, engine.ErrNoOpenDay),
		errors.Is(err, engine.ErrInsufficientQuantity),
		errors.Is(err, engine.ErrBelowBreakeven),
		errors.Is(err, engine.ErrTooManySales),
		errors.Is(err, engine.ErrInsufficientBalance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
