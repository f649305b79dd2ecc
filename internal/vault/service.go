// Package vault provides the HTTP handlers and business logic for the
// capital vault: multi-asset deposits, withdrawals, and the valued
// inventory view.
//
// All monetary values use shopspring/decimal — never float64 for money.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/p2pdesk/arb-engine/internal/asset"
	"github.com/p2pdesk/arb-engine/internal/engine"
	"github.com/p2pdesk/arb-engine/internal/metrics"
	"github.com/p2pdesk/arb-engine/internal/model"
	"github.com/p2pdesk/arb-engine/internal/store"
)

// Service handles vault operations. Deposits and withdrawals are
// read-modify-write on a holding row, so mutations are serialized with a
// mutex (single-instance).
type Service struct {
	store store.Store
	mu    sync.Mutex
}

// NewService creates a new vault service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// --- Request/Response types ---

// DepositRequest is the JSON body for POST /api/v1/vault/deposit.
type DepositRequest struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price_usd"`
}

// WithdrawRequest is the JSON body for POST /api/v1/vault/withdraw.
type WithdrawRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// InventoryItem is one holding in the inventory response, valued and
// weighted against the vault total.
type InventoryItem struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avg_price_usd"`
	Value     decimal.Decimal `json:"value_usd"`
	SharePct  decimal.Decimal `json:"share_pct"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// InventoryResponse is the JSON body for GET /api/v1/vault.
type InventoryResponse struct {
	Holdings []InventoryItem `json:"holdings"`
	Total    decimal.Decimal `json:"total_value_usd"`
}

// --- Core operations (also used by the cycle service) ---

// Deposit adds quantity of an asset at unitPrice, merging into any
// existing position via the weighted-average rule.
func (s *Service) Deposit(ctx context.Context, symbol string, quantity, unitPrice decimal.Decimal) (*model.Holding, error) {
	sym, err := asset.Normalize(symbol)
	if err != nil {
		return nil, err
	}
	if !quantity.IsPositive() || !unitPrice.IsPositive() {
		return nil, engine.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.store.GetHolding(ctx, sym)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = &model.Holding{Symbol: sym, Quantity: decimal.Zero, AvgPrice: decimal.Zero}
	}

	h.AvgPrice = engine.WeightedAveragePrice(h.Quantity, h.AvgPrice, quantity, unitPrice)
	h.Quantity = h.Quantity.Add(quantity)
	h.UpdatedAt = time.Now().UTC()

	if err := s.store.PutHolding(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Withdraw removes quantity of an asset. The average price is unchanged;
// a position drained to zero keeps its row at zero quantity.
func (s *Service) Withdraw(ctx context.Context, symbol string, quantity decimal.Decimal) (*model.Holding, error) {
	sym, err := asset.Normalize(symbol)
	if err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, engine.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.store.GetHolding(ctx, sym)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, engine.ErrUnknownAsset
	}
	if h.Quantity.LessThan(quantity) {
		return nil, engine.ErrInsufficientBalance
	}

	h.Quantity = h.Quantity.Sub(quantity)
	h.UpdatedAt = time.Now().UTC()

	if err := s.store.PutHolding(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// TotalValue sums every holding's valuation at its average acquisition
// price. Used for the cycle capital snapshot.
func (s *Service) TotalValue(ctx context.Context) (decimal.Decimal, error) {
	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.Value())
	}
	return total.Round(2), nil
}

// --- HTTP Handlers ---

// HandleDeposit handles POST /api/v1/vault/deposit
func (s *Service) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h, err := s.Deposit(r.Context(), req.Symbol, req.Quantity, req.UnitPrice)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("vault deposit",
		"symbol", h.Symbol,
		"qty", req.Quantity.String(),
		"price", req.UnitPrice.String(),
		"new_qty", h.Quantity.String(),
		"new_avg_price", h.AvgPrice.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h)
}

// HandleWithdraw handles POST /api/v1/vault/withdraw
func (s *Service) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h, err := s.Withdraw(r.Context(), req.Symbol, req.Quantity)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("vault withdrawal",
		"symbol", h.Symbol,
		"qty", req.Quantity.String(),
		"remaining", h.Quantity.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}

// HandleInventory handles GET /api/v1/vault
// Returns every holding valued at its average price, with its share of
// the vault total.
func (s *Service) HandleInventory(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.store.ListHoldings(r.Context())
	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}

	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.Value())
	}
	total = total.Round(2)

	items := make([]InventoryItem, 0, len(holdings))
	for _, h := range holdings {
		value := h.Value().Round(2)
		item := InventoryItem{
			Symbol:    h.Symbol,
			Quantity:  h.Quantity,
			AvgPrice:  h.AvgPrice,
			Value:     value,
			SharePct:  engine.PortfolioShare(value, total),
			UpdatedAt: h.UpdatedAt,
		}
		if a, ok := asset.Lookup(h.Symbol); ok {
			item.Name = a.Name
			item.Kind = a.Kind
		}
		items = append(items, item)
	}

	totalF, _ := total.Float64()
	metrics.VaultValue.Set(totalF)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(InventoryResponse{Holdings: items, Total: total})
}

// HandleGetHolding handles GET /api/v1/vault/{symbol}
func (s *Service) HandleGetHolding(w http.ResponseWriter, r *http.Request) {
	sym, err := asset.Normalize(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h, err := s.store.GetHolding(r.Context(), sym)
	if err != nil {
		writeError(w, "failed to load holding", http.StatusInternalServerError)
		return
	}
	if h == nil {
		writeError(w, "no holding for "+sym, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}

// HandleListAssets handles GET /api/v1/assets
// Returns the built-in asset registry, stablecoins first.
func (s *Service) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asset.List())
}

// statusFor maps vault errors to HTTP status codes: bad input is 400,
// unknown assets 404, balance conflicts 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, asset.ErrInvalidSymbol), errors.Is(err, engine.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientBalance):
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
