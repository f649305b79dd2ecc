package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/p2pdesk/arb-engine/internal/asset"
	"github.com/p2pdesk/arb-engine/internal/engine"
	"github.com/p2pdesk/arb-engine/internal/metrics"
	"github.com/p2pdesk/arb-engine/internal/model"
)

// DayView is a Day enriched with the limiter's per-day guidance. Returned
// by the current-day endpoint and the dashboard.
type DayView struct {
	model.Day
	SalesRemaining int             `json:"sales_remaining"` // -1 when the cap is disabled
	SalesTargetMet bool            `json:"sales_target_met"`
	SuggestedSlice decimal.Decimal `json:"suggested_slice_quantity"`
}

// CloseDayResponse confirms the day closure and the inventory returned to
// the vault.
type CloseDayResponse struct {
	Day              *model.Day      `json:"day"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	ReturnedTo       string          `json:"returned_to_symbol"`
}

// OpenDay starts an operating session against the active cycle: the
// purchased quantity is drawn from the vault holding for the asset, and
// the target and break-even resale prices are fixed for the day.
func (s *Service) OpenDay(ctx context.Context, req OpenDayRequest) (*model.Day, error) {
	sym, err := asset.Normalize(req.AssetSymbol)
	if err != nil {
		return nil, err
	}
	if !req.CapitalInvested.IsPositive() || !req.PurchaseRate.IsPositive() {
		return nil, engine.ErrInvalidAmount
	}

	target := s.trading.TargetProfitPct
	if req.TargetProfitPct != nil {
		if req.TargetProfitPct.IsNegative() {
			return nil, engine.ErrInvalidAmount
		}
		target = *req.TargetProfitPct
	}
	commission, err := s.resolveCommission(req.CommissionPct)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cycle, err := s.store.GetActiveCycle(ctx)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, engine.ErrNoActiveCycle
	}
	if !cycle.InitialCapital.IsPositive() {
		return nil, engine.ErrCycleHasNoCapital
	}

	open, err := s.store.GetOpenDay(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, engine.ErrDayAlreadyOpen
	}

	holding, err := s.store.GetHolding(ctx, sym)
	if err != nil {
		return nil, err
	}
	if holding == nil {
		return nil, engine.ErrUnknownAsset
	}

	quantity := engine.QuantityPurchased(req.CapitalInvested, req.PurchaseRate)
	if holding.Quantity.LessThan(quantity) {
		return nil, engine.ErrInsufficientBalance
	}

	dayNum, err := s.store.MaxDayNumber(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}

	day := &model.Day{
		ID:                uuid.New().String(),
		CycleID:           cycle.ID,
		DayNumber:         dayNum + 1,
		AssetSymbol:       sym,
		CapitalInvested:   req.CapitalInvested.Round(engine.USDScale),
		PurchaseRate:      req.PurchaseRate,
		QuantityPurchased: quantity,
		TargetPrice:       engine.TargetSellPrice(req.CapitalInvested, quantity, target, commission),
		BreakevenPrice:    engine.BreakevenSellPrice(req.CapitalInvested, quantity, commission),
		QuantityRemaining: quantity,
		NetProfit:         decimal.Zero,
		Status:            model.DayOpen,
		OpenedAt:          time.Now().UTC(),
	}

	// Inventory moves from the vault to the day.
	holding.Quantity = holding.Quantity.Sub(quantity)
	holding.UpdatedAt = day.OpenedAt

	if err := s.store.OpenDay(ctx, day, holding); err != nil {
		return nil, err
	}

	metrics.DaysOpened.Inc()
	return day, nil
}

// RecordSale books one partial disposal of the open day's inventory and
// rolls the profit up into the day and cycle aggregates. The sale record
// is immutable once written.
func (s *Service) RecordSale(ctx context.Context, req SaleRequest) (*model.Sale, error) {
	if !req.SellPrice.IsPositive() || !req.Quantity.IsPositive() {
		return nil, engine.ErrInvalidAmount
	}
	commission, err := s.resolveCommission(req.CommissionPct)
	if err != nil {
		return nil, err
	}

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
	if day == nil {
		return nil, engine.ErrNoOpenDay
	}

	if req.Quantity.GreaterThan(day.QuantityRemaining) {
		return nil, engine.ErrInsufficientQuantity
	}
	if req.SellPrice.LessThan(day.BreakevenPrice) {
		return nil, engine.ErrBelowBreakeven
	}
	if err := s.limiter.CheckCanSell(day.SalesCount); err != nil {
		return nil, engine.ErrTooManySales
	}

	b := engine.ComputeSale(req.Quantity, day.PurchaseRate, req.SellPrice, commission)

	sale := &model.Sale{
		ID:            uuid.New().String(),
		DayID:         day.ID,
		SellPrice:     req.SellPrice,
		Quantity:      req.Quantity,
		CommissionPct: commission,
		GrossAmount:   b.GrossAmount,
		Commission:    b.Commission,
		NetAmount:     b.NetAmount,
		CostBasis:     b.CostBasis,
		GrossProfit:   b.GrossProfit,
		NetProfit:     b.NetProfit,
		CreatedAt:     time.Now().UTC(),
	}

	day.QuantityRemaining = day.QuantityRemaining.Sub(req.Quantity)
	day.NetProfit = day.NetProfit.Add(b.NetProfit)
	day.SalesCount++
	cycle.TotalProfit = cycle.TotalProfit.Add(b.NetProfit)
	cycle.TotalSales++

	if err := s.store.ApplySale(ctx, sale, day, cycle); err != nil {
		return nil, err
	}

	metrics.SalesTotal.WithLabelValues(day.AssetSymbol).Inc()
	return sale, nil
}

// CloseDay finalizes the open day. Unsold inventory is merged back into
// the vault holding at the day's purchase rate; it is vault capital again,
// not a realized loss.
func (s *Service) CloseDay(ctx context.Context) (*CloseDayResponse, error) {
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
	if day == nil {
		return nil, engine.ErrNoOpenDay
	}

	now := time.Now().UTC()
	returned := day.QuantityRemaining

	holding, err := s.store.GetHolding(ctx, day.AssetSymbol)
	if err != nil {
		return nil, err
	}
	if holding == nil {
		// The row was created by the funding deposit; recreate defensively.
		holding = &model.Holding{Symbol: day.AssetSymbol, Quantity: decimal.Zero, AvgPrice: decimal.Zero}
	}
	if returned.IsPositive() {
		holding.AvgPrice = engine.WeightedAveragePrice(holding.Quantity, holding.AvgPrice, returned, day.PurchaseRate)
		holding.Quantity = holding.Quantity.Add(returned)
	}
	holding.UpdatedAt = now

	day.Status = model.DayClosed
	day.ClosedAt = &now
	cycle.DaysOperated++

	if err := s.store.CloseDay(ctx, day, holding, cycle); err != nil {
		return nil, err
	}

	return &CloseDayResponse{
		Day:              day,
		ReturnedQuantity: returned,
		ReturnedTo:       day.AssetSymbol,
	}, nil
}

// resolveCommission validates an optional per-request commission override
// against the configured default. Commissions are fractions in [0, 1).
func (s *Service) resolveCommission(override *decimal.Decimal) (decimal.Decimal, error) {
	if override == nil {
		return s.trading.CommissionPct, nil
	}
	if override.IsNegative() || override.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, engine.ErrInvalidAmount
	}
	return *override, nil
}

// dayView wraps a day with the limiter's guidance.
func (s *Service) dayView(day *model.Day) DayView {
	return DayView{
		Day:            *day,
		SalesRemaining: s.limiter.Remaining(day.SalesCount),
		SalesTargetMet: s.limiter.TargetMet(day.SalesCount),
		SuggestedSlice: s.limiter.SuggestedSliceQuantity(day.QuantityRemaining, day.SalesCount),
	}
}

// --- Day & sale HTTP handlers ---

// HandleOpenDay handles POST /api/v1/days/open
func (s *Service) HandleOpenDay(w http.ResponseWriter, r *http.Request) {
	var req OpenDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	day, err := s.OpenDay(r.Context(), req)
	if err != nil {
		metrics.SaleRejections.WithLabelValues("open_day:" + reason(err)).Inc()
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("day opened",
		"id", day.ID,
		"cycle", day.CycleID,
		"day_number", day.DayNumber,
		"asset", day.AssetSymbol,
		"capital", day.CapitalInvested.String(),
		"rate", day.PurchaseRate.String(),
		"quantity", day.QuantityPurchased.String(),
		"target_price", day.TargetPrice.String(),
		"breakeven_price", day.BreakevenPrice.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "day_opened",
			CycleID:     day.CycleID,
			DayID:       day.ID,
			AssetSymbol: day.AssetSymbol,
			Quantity:    day.QuantityPurchased.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s.dayView(day))
}

// HandleRecordSale handles POST /api/v1/sales
func (s *Service) HandleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sale, err := s.RecordSale(r.Context(), req)
	if err != nil {
		metrics.SaleRejections.WithLabelValues(reason(err)).Inc()
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("sale recorded",
		"id", sale.ID,
		"day", sale.DayID,
		"price", sale.SellPrice.String(),
		"quantity", sale.Quantity.String(),
		"net_amount", sale.NetAmount.String(),
		"profit", sale.NetProfit.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "sale_recorded",
			DayID:     sale.DayID,
			SellPrice: sale.SellPrice.String(),
			Quantity:  sale.Quantity.String(),
			NetProfit: sale.NetProfit.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sale)
}

// HandleCloseDay handles POST /api/v1/days/close
func (s *Service) HandleCloseDay(w http.ResponseWriter, r *http.Request) {
	resp, err := s.CloseDay(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("day closed",
		"id", resp.Day.ID,
		"sales", resp.Day.SalesCount,
		"profit", resp.Day.NetProfit.String(),
		"returned_qty", resp.ReturnedQuantity.String(),
		"returned_to", resp.ReturnedTo,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "day_closed",
			CycleID:     resp.Day.CycleID,
			DayID:       resp.Day.ID,
			AssetSymbol: resp.Day.AssetSymbol,
			NetProfit:   resp.Day.NetProfit.String(),
			SalesCount:  resp.Day.SalesCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleCurrentDay handles GET /api/v1/days/current
func (s *Service) HandleCurrentDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cycle, err := s.store.GetActiveCycle(ctx)
	if err != nil {
		writeError(w, "failed to load active cycle", http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		writeError(w, "no active cycle", http.StatusNotFound)
		return
	}

	day, err := s.store.GetOpenDay(ctx, cycle.ID)
	if err != nil {
		writeError(w, "failed to load open day", http.StatusInternalServerError)
		return
	}
	if day == nil {
		writeError(w, "no open day", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.dayView(day))
}

// HandleListDays handles GET /api/v1/cycles/{cycleID}/days
func (s *Service) HandleListDays(w http.ResponseWriter, r *http.Request) {
	cycleID := chi.URLParam(r, "cycleID")

	cycle, err := s.store.GetCycle(r.Context(), cycleID)
	if err != nil {
		writeError(w, "failed to load cycle", http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		writeError(w, "cycle not found", http.StatusNotFound)
		return
	}

	days, err := s.store.ListDays(r.Context(), cycleID)
	if err != nil {
		writeError(w, "failed to list days", http.StatusInternalServerError)
		return
	}
	if days == nil {
		days = []model.Day{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(days)
}

// HandleListDaySales handles GET /api/v1/days/{dayID}/sales
// Returns the day's immutable sale ledger, newest first, optionally
// capped by ?limit=N.
func (s *Service) HandleListDaySales(w http.ResponseWriter, r *http.Request) {
	dayID := chi.URLParam(r, "dayID")

	day, err := s.store.GetDay(r.Context(), dayID)
	if err != nil {
		writeError(w, "failed to load day", http.StatusInternalServerError)
		return
	}
	if day == nil {
		writeError(w, "day not found", http.StatusNotFound)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sales, err := s.store.ListSalesByDay(r.Context(), dayID, limit)
	if err != nil {
		writeError(w, "failed to list sales", http.StatusInternalServerError)
		return
	}
	if sales == nil {
		sales = []model.Sale{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sales)
}

// reason converts a rejection error into a short metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, engine.ErrUnknownAsset):
		return "unknown_asset"
	case errors.Is(err, engine.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, engine.ErrNoActiveCycle):
		return "no_active_cycle"
	case errors.Is(err, engine.ErrCycleHasNoCapital):
		return "cycle_has_no_capital"
	case errors.Is(err, engine.ErrDayAlreadyOpen):
		return "day_already_open"
	case errors.Is(err, engine.ErrNoOpenDay):
		return "no_open_day"
	case errors.Is(err, engine.ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, engine.ErrBelowBreakeven):
		return "below_breakeven"
	case errors.Is(err, engine.ErrTooManySales):
		return "too_many_sales"
	default:
		return "other"
	}
}
