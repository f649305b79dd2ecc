// Package engine implements the profit arithmetic for P2P arbitrage
// operating sessions: purchase quantity, target and break-even resale
// prices, per-sale profit breakdown, and the vault's weighted-average
// acquisition price rule.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Asset quantities are kept at 8 fractional digits (sub-cent granularity),
// USD amounts at 2, unit prices at 4.
package engine

import (
	"github.com/shopspring/decimal"
)

// Rounding scales. QtyScale matches the asset-quantity granularity the
// ledger persists; going coarser accumulates drift across many small sales.
const (
	QtyScale   int32 = 8
	USDScale   int32 = 2
	PriceScale int32 = 4
	PctScale   int32 = 2
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// QuantityPurchased converts invested USD capital into asset quantity at
// the given purchase rate.
//
//	quantity = capital / rate
func QuantityPurchased(capital, rate decimal.Decimal) decimal.Decimal {
	return capital.Div(rate).Round(QtyScale)
}

// BreakevenSellPrice is the unit price at which selling the full purchased
// quantity, net of commission, returns exactly the invested capital
// (zero profit):
//
//	breakeven = capital / (quantity * (1 - commission))
//
// commission is a fraction (0.0035 = 0.35%).
func BreakevenSellPrice(capital, quantity, commission decimal.Decimal) decimal.Decimal {
	return capital.Div(quantity.Mul(one.Sub(commission))).Round(PriceScale)
}

// TargetSellPrice is the unit price at which selling the full purchased
// quantity, net of commission, yields exactly capital * (1 + targetProfit):
//
//	target = capital * (1 + targetProfit) / (quantity * (1 - commission))
//
// Both targetProfit and commission are fractions.
func TargetSellPrice(capital, quantity, targetProfit, commission decimal.Decimal) decimal.Decimal {
	gross := capital.Mul(one.Add(targetProfit))
	return gross.Div(quantity.Mul(one.Sub(commission))).Round(PriceScale)
}

// SaleBreakdown holds every derived value of one sale. Amounts are USD
// rounded to USDScale.
type SaleBreakdown struct {
	GrossAmount decimal.Decimal // sellPrice * quantity
	Commission  decimal.Decimal // grossAmount * commission
	NetAmount   decimal.Decimal // grossAmount - commission
	CostBasis   decimal.Decimal // purchaseRate * quantity
	GrossProfit decimal.Decimal // grossAmount - costBasis
	NetProfit   decimal.Decimal // netAmount - costBasis
}

// ComputeSale derives the full breakdown of selling quantity units bought
// at purchaseRate for sellPrice each, with a fractional commission on the
// gross amount. The cost basis is the proportional share of the day's
// invested capital.
func ComputeSale(quantity, purchaseRate, sellPrice, commission decimal.Decimal) SaleBreakdown {
	gross := sellPrice.Mul(quantity).Round(USDScale)
	fee := gross.Mul(commission).Round(USDScale)
	net := gross.Sub(fee)
	cost := purchaseRate.Mul(quantity).Round(USDScale)

	return SaleBreakdown{
		GrossAmount: gross,
		Commission:  fee,
		NetAmount:   net,
		CostBasis:   cost,
		GrossProfit: gross.Sub(cost),
		NetProfit:   net.Sub(cost),
	}
}

// WeightedAveragePrice merges a new purchase into an existing position:
//
//	price = (oldQty*oldPrice + newQty*newPrice) / (oldQty + newQty)
//
// The formula is symmetric, so deposit order does not affect the result.
// Returns zero when the combined quantity is zero.
func WeightedAveragePrice(oldQty, oldPrice, newQty, newPrice decimal.Decimal) decimal.Decimal {
	total := oldQty.Add(newQty)
	if total.IsZero() {
		return decimal.Zero
	}
	blended := oldQty.Mul(oldPrice).Add(newQty.Mul(newPrice))
	return blended.Div(total).Round(PriceScale)
}

// ReturnPct computes profit as a percentage of the invested capital.
// Returns zero when the investment is not positive (undefined ROI).
func ReturnPct(profit, investment decimal.Decimal) decimal.Decimal {
	if !investment.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(investment).Mul(hundred).Round(PctScale)
}

// PortfolioShare computes a holding's value as a percentage of the vault
// total. Returns zero when the total is not positive, never a division
// error.
func PortfolioShare(value, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return value.Div(total).Mul(hundred).Round(PctScale)
}
