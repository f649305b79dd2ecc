package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/p2pdesk/arb-engine/internal/engine"
	"github.com/p2pdesk/arb-engine/internal/model"
)

// HandleCycleStatistics handles GET /api/v1/cycles/{cycleID}/statistics
// Aggregates the cycle's per-day averages. Read-only; nothing is mutated.
func (s *Service) HandleCycleStatistics(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.store.GetCycle(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeError(w, "failed to load cycle", http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		writeError(w, "cycle not found", http.StatusNotFound)
		return
	}

	stats := model.CycleStatistics{
		CycleID:        cycle.ID,
		SequenceNumber: cycle.SequenceNumber,
		Status:         cycle.Status,
		DaysOperated:   cycle.DaysOperated,
		TotalSales:     cycle.TotalSales,
		TotalProfit:    cycle.TotalProfit,
		ReturnPct:      engine.ReturnPct(cycle.TotalProfit, cycle.InitialCapital),
	}

	if cycle.DaysOperated > 0 {
		days := decimal.NewFromInt(int64(cycle.DaysOperated))
		stats.AvgProfitPerDay = cycle.TotalProfit.Div(days).Round(engine.USDScale)
		stats.AvgSalesPerDay = decimal.NewFromInt(int64(cycle.TotalSales)).Div(days).Round(engine.PctScale)
	}

	end := time.Now().UTC()
	if cycle.EndDate != nil {
		end = *cycle.EndDate
	}
	stats.DurationDays = int(end.Sub(cycle.StartDate).Hours() / 24)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// HandleDashboard handles GET /api/v1/dashboard
// Combines the vault valuation, the active (or most recent) cycle, and
// the open day into one summary. Recomputed per query; holds no state.
func (s *Service) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.vault.TotalValue(ctx)
	if err != nil {
		writeError(w, "failed to value vault", http.StatusInternalServerError)
		return
	}
	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}

	dash := model.Dashboard{
		VaultTotal:    total,
		HoldingsCount: len(holdings),
		TodayProfit:   decimal.Zero,
	}

	cycle, err := s.store.GetActiveCycle(ctx)
	if err != nil {
		writeError(w, "failed to load active cycle", http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		// Fall back to the most recent cycle for historical context.
		cycle, err = s.store.GetLatestCycle(ctx)
		if err != nil {
			writeError(w, "failed to load latest cycle", http.StatusInternalServerError)
			return
		}
	}

	if cycle != nil {
		cycle.ReturnPct = engine.ReturnPct(cycle.TotalProfit, cycle.InitialCapital)
		dash.Cycle = cycle

		if cycle.Status == model.CycleActive {
			day, err := s.store.GetOpenDay(ctx, cycle.ID)
			if err != nil {
				writeError(w, "failed to load open day", http.StatusInternalServerError)
				return
			}
			if day != nil {
				dash.OpenDay = day
				dash.TodaySalesCount = day.SalesCount
				dash.TodayProfit = day.NetProfit
				dash.SalesTargetMet = s.limiter.TargetMet(day.SalesCount)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dash)
}
