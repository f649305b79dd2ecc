package vault_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/p2pdesk/arb-engine/internal/model"
	"github.com/p2pdesk/arb-engine/internal/store"
	"github.com/p2pdesk/arb-engine/internal/vault"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*vault.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := vault.NewService(ms)

	r := chi.NewRouter()
	r.Get("/api/v1/vault", svc.HandleInventory)
	r.Post("/api/v1/vault/deposit", svc.HandleDeposit)
	r.Post("/api/v1/vault/withdraw", svc.HandleWithdraw)
	r.Get("/api/v1/vault/{symbol}", svc.HandleGetHolding)
	r.Get("/api/v1/assets", svc.HandleListAssets)

	return svc, ms, r
}

// seedHolding creates a holding directly in the store.
func seedHolding(t *testing.T, ms *store.MemoryStore, symbol string, qty, price float64) {
	t.Helper()
	h := &model.Holding{
		Symbol:    symbol,
		Quantity:  d(qty),
		AvgPrice:  d(price),
		UpdatedAt: time.Now().UTC(),
	}
	if err := ms.PutHolding(context.Background(), h); err != nil {
		t.Fatalf("failed to seed holding: %v", err)
	}
}

func doPost(t *testing.T, router chi.Router, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Deposit tests ---

func TestDeposit_NewHolding(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/vault/deposit", vault.DepositRequest{
		Symbol: "usdt", Quantity: d(1000), UnitPrice: d(1),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var h model.Holding
	json.Unmarshal(w.Body.Bytes(), &h)

	if h.Symbol != "USDT" {
		t.Errorf("expected normalized symbol USDT, got %s", h.Symbol)
	}
	if !h.Quantity.Equal(d(1000)) {
		t.Errorf("expected quantity=1000, got %s", h.Quantity)
	}
	if !h.AvgPrice.Equal(d(1)) {
		t.Errorf("expected avg_price=1, got %s", h.AvgPrice)
	}
}

func TestDeposit_WeightedAverageMerge(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedHolding(t, ms, "BTC", 1, 100000)

	// 1 BTC @ 100k merged with 1 BTC @ 120k → 2 BTC @ 110k.
	w := doPost(t, router, "/api/v1/vault/deposit", vault.DepositRequest{
		Symbol: "BTC", Quantity: d(1), UnitPrice: d(120000),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var h model.Holding
	json.Unmarshal(w.Body.Bytes(), &h)

	if !h.Quantity.Equal(d(2)) {
		t.Errorf("expected quantity=2, got %s", h.Quantity)
	}
	if !h.AvgPrice.Equal(d(110000)) {
		t.Errorf("expected avg_price=110000, got %s", h.AvgPrice)
	}
}

func TestDeposit_InvalidInput(t *testing.T) {
	_, _, router := newTestEnv(t)

	cases := []struct {
		name string
		req  vault.DepositRequest
	}{
		{"zero quantity", vault.DepositRequest{Symbol: "USDT", Quantity: decimal.Zero, UnitPrice: d(1)}},
		{"negative quantity", vault.DepositRequest{Symbol: "USDT", Quantity: d(-5), UnitPrice: d(1)}},
		{"zero price", vault.DepositRequest{Symbol: "USDT", Quantity: d(10), UnitPrice: decimal.Zero}},
		{"bad symbol", vault.DepositRequest{Symbol: "not a symbol!", Quantity: d(10), UnitPrice: d(1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doPost(t, router, "/api/v1/vault/deposit", tc.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

// --- Withdraw tests ---

func TestWithdraw_PartialAndToZero(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedHolding(t, ms, "USDT", 1000, 1)

	w := doPost(t, router, "/api/v1/vault/withdraw", vault.WithdrawRequest{
		Symbol: "USDT", Quantity: d(400),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var h model.Holding
	json.Unmarshal(w.Body.Bytes(), &h)
	if !h.Quantity.Equal(d(600)) {
		t.Errorf("expected remaining=600, got %s", h.Quantity)
	}
	// Withdrawals never touch the average price.
	if !h.AvgPrice.Equal(d(1)) {
		t.Errorf("expected avg_price unchanged at 1, got %s", h.AvgPrice)
	}

	// Drain to zero: the row survives at zero quantity.
	w = doPost(t, router, "/api/v1/vault/withdraw", vault.WithdrawRequest{
		Symbol: "USDT", Quantity: d(600),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	stored, err := ms.GetHolding(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if stored == nil {
		t.Fatal("holding row should survive a withdraw-to-zero")
	}
	if !stored.Quantity.IsZero() {
		t.Errorf("expected quantity=0, got %s", stored.Quantity)
	}
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedHolding(t, ms, "USDT", 100, 1)

	w := doPost(t, router, "/api/v1/vault/withdraw", vault.WithdrawRequest{
		Symbol: "USDT", Quantity: d(100.01),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// No partial application.
	stored, _ := ms.GetHolding(context.Background(), "USDT")
	if !stored.Quantity.Equal(d(100)) {
		t.Errorf("balance should be untouched, got %s", stored.Quantity)
	}
}

func TestWithdraw_UnknownAsset(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/vault/withdraw", vault.WithdrawRequest{
		Symbol: "ETH", Quantity: d(1),
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Inventory tests ---

func TestInventory_SharesSumToHundred(t *testing.T) {
	_, ms, router := newTestEnv(t)
	// Values 600 and 400, so shares should be 60/40.
	seedHolding(t, ms, "USDT", 600, 1)
	seedHolding(t, ms, "BTC", 0.004, 100000)

	req := httptest.NewRequest("GET", "/api/v1/vault", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp vault.InventoryResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if !resp.Total.Equal(d(1000)) {
		t.Errorf("expected total=1000, got %s", resp.Total)
	}
	if len(resp.Holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(resp.Holdings))
	}

	// Largest value first.
	if resp.Holdings[0].Symbol != "USDT" {
		t.Errorf("expected USDT first (largest value), got %s", resp.Holdings[0].Symbol)
	}

	sum := decimal.Zero
	for _, item := range resp.Holdings {
		sum = sum.Add(item.SharePct)
	}
	if sum.Sub(d(100)).Abs().GreaterThan(d(0.01)) {
		t.Errorf("shares should sum to ~100, got %s", sum)
	}

	// Registry metadata is attached for known symbols.
	if resp.Holdings[0].Name != "Tether" {
		t.Errorf("expected registry name Tether, got %q", resp.Holdings[0].Name)
	}
}

func TestInventory_Empty(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/vault", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp vault.InventoryResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Holdings) != 0 {
		t.Errorf("expected 0 holdings, got %d", len(resp.Holdings))
	}
	if !resp.Total.IsZero() {
		t.Errorf("expected total=0, got %s", resp.Total)
	}
}

func TestGetHolding_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/vault/BTC", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListAssets_StablecoinsFirst(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/assets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var assets []struct {
		Symbol string `json:"symbol"`
		Kind   string `json:"kind"`
	}
	json.Unmarshal(w.Body.Bytes(), &assets)

	if len(assets) == 0 {
		t.Fatal("expected non-empty asset list")
	}
	if assets[0].Kind != "stablecoin" {
		t.Errorf("expected stablecoins first, got %s", assets[0].Kind)
	}
}

// --- TotalValue ---

func TestTotalValue(t *testing.T) {
	svc, ms, _ := newTestEnv(t)
	seedHolding(t, ms, "USDT", 500, 1)
	seedHolding(t, ms, "ETH", 2, 3000)

	total, err := svc.TotalValue(context.Background())
	if err != nil {
		t.Fatalf("total value: %v", err)
	}
	if !total.Equal(d(6500)) {
		t.Errorf("expected 6500, got %s", total)
	}
}
