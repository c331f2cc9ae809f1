package portfolio

import (
	"strings"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"

	"github.com/shopspring/decimal"
)

const usd = "USD"

var hundred = decimal.NewFromInt(100)

// FeeInput is the raw amount data of a buy or sell as entered by the owner.
type FeeInput struct {
	AssetSymbol  string
	GrossAmount  decimal.Decimal
	FeeAmount    *decimal.Decimal
	FeeCurrency  *string
	UnitPriceUSD decimal.Decimal
}

// FeeResult holds the values persisted on the transaction.
type FeeResult struct {
	NetAmount     decimal.Decimal
	TotalSpentUSD decimal.Decimal
	FeeAmount     decimal.Decimal
	FeeCurrency   *string
}

// ComputeFees derives the net quantity and USD cost of a transaction.
// A USD fee is added to the cost; a fee in the asset itself reduces the
// quantity received. Any other fee currency is rejected.
func ComputeFees(in FeeInput) (FeeResult, error) {
	if !in.GrossAmount.IsPositive() {
		return FeeResult{}, apperr.Validation("grossAmount must be greater than zero")
	}
	if !in.UnitPriceUSD.IsPositive() {
		return FeeResult{}, apperr.Validation("unitPriceUsd must be greater than zero")
	}

	fee := decimal.Zero
	if in.FeeAmount != nil {
		fee = *in.FeeAmount
	}
	if fee.IsNegative() {
		return FeeResult{}, apperr.Validation("feeAmount must not be negative")
	}

	currency := normalizeCurrency(in.FeeCurrency)
	res := FeeResult{
		NetAmount:     in.GrossAmount,
		TotalSpentUSD: in.GrossAmount.Mul(in.UnitPriceUSD),
		FeeAmount:     fee,
		FeeCurrency:   currency,
	}

	if !fee.IsPositive() {
		if currency != nil {
			return FeeResult{}, apperr.Validation("feeCurrency requires feeAmount greater than zero")
		}
		return res.rounded(), nil
	}

	switch {
	case currency == nil:
		return FeeResult{}, apperr.Validation("unsupported fee currency")
	case *currency == usd:
		res.TotalSpentUSD = res.TotalSpentUSD.Add(fee)
	case strings.EqualFold(*currency, strings.TrimSpace(in.AssetSymbol)):
		res.NetAmount = in.GrossAmount.Sub(fee)
		if !res.NetAmount.IsPositive() {
			return FeeResult{}, apperr.Validation("netAmount must be positive after asset-denominated fee")
		}
	default:
		return FeeResult{}, apperr.Validation("unsupported fee currency")
	}
	return res.rounded(), nil
}

func (r FeeResult) rounded() FeeResult {
	r.NetAmount = r.NetAmount.Round(models.QuantityScale)
	r.TotalSpentUSD = r.TotalSpentUSD.Round(models.PriceScale)
	return r
}

func normalizeCurrency(c *string) *string {
	if c == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*c))
	if v == "" {
		return nil
	}
	return &v
}
