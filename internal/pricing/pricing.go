// Package pricing holds the deterministic trade arithmetic: effective
// prices, gross amounts, fees, and liquidation sizing. Money is int64 minor
// units throughout; decimals appear only where a fractional rate multiplies
// an amount, and every truncation is an explicit Floor or Ceil.
package pricing

import (
	"github.com/shopspring/decimal"
)

const HomeCurrency = "KRW"

// EffectivePrice converts a quote price into home-currency minor units.
// Home-currency instruments pass through unchanged; foreign ones are
// converted with floor(price * rate), truncating fractional units toward
// zero.
func EffectivePrice(price int64, currency string, conversionRate decimal.Decimal) int64 {
	if currency == "" || currency == HomeCurrency {
		return price
	}
	return decimal.NewFromInt(price).Mul(conversionRate).Floor().IntPart()
}

// GrossAmount is the trade notional: price * quantity. Both operands are
// integers, so no rounding occurs here.
func GrossAmount(price, quantity int64) int64 {
	return price * quantity
}

// Fee is floor(amount * rate). Callers apply it only on sell-side legs;
// buys are fee-free.
func Fee(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}

// NetProceeds is the sell-side cash result after the fee.
func NetProceeds(amount, fee int64) int64 {
	return amount - fee
}

// SharesForExcess sizes a forced liquidation sell: the smallest share count
// whose net proceeds at the given price cover the excess,
// ceil(excess / (price * (1 - feeRate))). Returns 0 when the price is
// non-positive.
func SharesForExcess(excess, price int64, feeRate decimal.Decimal) int64 {
	if excess <= 0 || price <= 0 {
		return 0
	}
	netPrice := decimal.NewFromInt(price).Mul(decimal.NewFromInt(1).Sub(feeRate))
	if !netPrice.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(excess).Div(netPrice).Ceil().IntPart()
}

// Interest is floor(used * dailyRate * days), the credit interest accrued
// over a whole number of calendar days.
func Interest(used int64, dailyRate decimal.Decimal, days int64) int64 {
	if used <= 0 || days <= 0 {
		return 0
	}
	return decimal.NewFromInt(used).Mul(dailyRate).Mul(decimal.NewFromInt(days)).Floor().IntPart()
}
