// Package model defines the core domain types shared across the engine.
// All monetary values and asset quantities use shopspring/decimal — never
// float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cycle status values.
const (
	CycleActive = "active"
	CycleClosed = "closed"
)

// Day status values.
const (
	DayOpen   = "open"
	DayClosed = "closed"
)

// Holding is one asset entry in the capital vault. The acquisition price
// is a weighted average across all deposits that built the position.
type Holding struct {
	Symbol    string          `json:"symbol" db:"symbol"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	AvgPrice  decimal.Decimal `json:"avg_price_usd" db:"avg_price"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Value returns the holding's USD valuation at its average acquisition price.
func (h Holding) Value() decimal.Decimal {
	return h.Quantity.Mul(h.AvgPrice)
}

// Cycle is a bounded accounting period. Exactly one cycle may be active at
// a time; its initial capital is a snapshot of the vault valuation taken
// when the cycle starts.
type Cycle struct {
	ID             string          `json:"id" db:"id"`
	SequenceNumber int             `json:"sequence_number" db:"sequence_number"`
	StartDate      time.Time       `json:"start_date" db:"start_date"`
	EndDate        *time.Time      `json:"end_date,omitempty" db:"end_date"`
	InitialCapital decimal.Decimal `json:"initial_capital_usd" db:"initial_capital"`
	FinalCapital   decimal.Decimal `json:"final_capital_usd" db:"final_capital"`
	TotalProfit    decimal.Decimal `json:"total_profit_usd" db:"total_profit"`
	ReturnPct      decimal.Decimal `json:"return_pct"`
	DaysOperated   int             `json:"days_operated" db:"days_operated"`
	TotalSales     int             `json:"total_sales" db:"total_sales"`
	Status         string          `json:"status" db:"status"` // "active", "closed"
}

// Day is one operating session: a fixed quantity of one asset purchased at
// a known rate, then sold off in increments. Exactly one day may be open
// per cycle.
type Day struct {
	ID                string          `json:"id" db:"id"`
	CycleID           string          `json:"cycle_id" db:"cycle_id"`
	DayNumber         int             `json:"day_number" db:"day_number"`
	AssetSymbol       string          `json:"asset_symbol" db:"asset_symbol"`
	CapitalInvested   decimal.Decimal `json:"capital_usd_invested" db:"capital_invested"`
	PurchaseRate      decimal.Decimal `json:"purchase_rate" db:"purchase_rate"`
	QuantityPurchased decimal.Decimal `json:"quantity_purchased" db:"quantity_purchased"`
	TargetPrice       decimal.Decimal `json:"target_sell_price" db:"target_price"`
	BreakevenPrice    decimal.Decimal `json:"breakeven_sell_price" db:"breakeven_price"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining" db:"quantity_remaining"`
	SalesCount        int             `json:"sales_count" db:"sales_count"`
	NetProfit         decimal.Decimal `json:"net_profit_usd" db:"net_profit"`
	Status            string          `json:"status" db:"status"` // "open", "closed"
	OpenedAt          time.Time       `json:"opened_at" db:"opened_at"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
}

// Sale is an immutable record of one partial disposal of a day's purchased
// quantity. Once created, sales are never modified or deleted.
type Sale struct {
	ID            string          `json:"id" db:"id"`
	DayID         string          `json:"day_id" db:"day_id"`
	SellPrice     decimal.Decimal `json:"sell_price" db:"sell_price"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	CommissionPct decimal.Decimal `json:"commission_pct" db:"commission_pct"` // fraction, e.g. 0.0035
	GrossAmount   decimal.Decimal `json:"gross_amount_usd" db:"gross_amount"`
	Commission    decimal.Decimal `json:"commission_usd" db:"commission_usd"`
	NetAmount     decimal.Decimal `json:"net_amount_usd" db:"net_amount"`
	CostBasis     decimal.Decimal `json:"cost_basis_usd" db:"cost_basis"`
	GrossProfit   decimal.Decimal `json:"gross_profit_usd" db:"gross_profit"`
	NetProfit     decimal.Decimal `json:"profit_usd" db:"net_profit"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// CycleStatistics aggregates a cycle's per-day averages for reporting.
type CycleStatistics struct {
	CycleID         string          `json:"cycle_id"`
	SequenceNumber  int             `json:"sequence_number"`
	Status          string          `json:"status"`
	DaysOperated    int             `json:"days_operated"`
	TotalSales      int             `json:"total_sales"`
	TotalProfit     decimal.Decimal `json:"total_profit_usd"`
	ReturnPct       decimal.Decimal `json:"return_pct"`
	AvgProfitPerDay decimal.Decimal `json:"avg_profit_per_day_usd"`
	AvgSalesPerDay  decimal.Decimal `json:"avg_sales_per_day"`
	DurationDays    int             `json:"duration_days"`
}

// Dashboard is the read-side summary combining vault, cycle, and today's
// session. It holds no state of its own and is recomputed per query.
type Dashboard struct {
	VaultTotal      decimal.Decimal `json:"vault_total_usd"`
	HoldingsCount   int             `json:"holdings_count"`
	Cycle           *Cycle          `json:"cycle,omitempty"` // active, or most recent
	OpenDay         *Day            `json:"open_day,omitempty"`
	TodaySalesCount int             `json:"today_sales_count"`
	TodayProfit     decimal.Decimal `json:"today_profit_usd"`
	SalesTargetMet  bool            `json:"sales_target_met"`
}
