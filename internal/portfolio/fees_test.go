package portfolio

import (
	"testing"

	"position-tracker/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func TestComputeFees(t *testing.T) {
	testCases := []struct {
		name          string
		in            FeeInput
		expectedNet   string
		expectedTotal string
		expectedFee   string
		expectedCcy   *string
		expectedErr   string
	}{
		{
			name:          "No fee",
			in:            FeeInput{AssetSymbol: "BTC", GrossAmount: dec("0.5"), UnitPriceUSD: dec("100000")},
			expectedNet:   "0.5",
			expectedTotal: "50000",
			expectedFee:   "0",
		},
		{
			name: "USD fee is added to cost",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1.5"), UnitPriceUSD: dec("50000"),
				FeeAmount: decPtr("10"), FeeCurrency: strPtr("USD")},
			expectedNet:   "1.5",
			expectedTotal: "75010",
			expectedFee:   "10",
			expectedCcy:   strPtr("USD"),
		},
		{
			name: "Asset fee reduces quantity",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1.5"), UnitPriceUSD: dec("50000"),
				FeeAmount: decPtr("0.01"), FeeCurrency: strPtr("BTC")},
			expectedNet:   "1.49",
			expectedTotal: "75000",
			expectedFee:   "0.01",
			expectedCcy:   strPtr("BTC"),
		},
		{
			name: "Fee currency is normalized",
			in: FeeInput{AssetSymbol: "eth", GrossAmount: dec("2"), UnitPriceUSD: dec("3000"),
				FeeAmount: decPtr("0.5"), FeeCurrency: strPtr("  Eth ")},
			expectedNet:   "1.5",
			expectedTotal: "6000",
			expectedFee:   "0.5",
			expectedCcy:   strPtr("ETH"),
		},
		{
			name:          "Blank currency with no fee is absent",
			in:            FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1"), UnitPriceUSD: dec("10"), FeeCurrency: strPtr("  ")},
			expectedNet:   "1",
			expectedTotal: "10",
			expectedFee:   "0",
		},
		{
			name: "Asset fee consumes whole amount",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1.0"), UnitPriceUSD: dec("50000"),
				FeeAmount: decPtr("1.0"), FeeCurrency: strPtr("BTC")},
			expectedErr: "netAmount must be positive after asset-denominated fee",
		},
		{
			name: "Unsupported fee currency",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1"), UnitPriceUSD: dec("50000"),
				FeeAmount: decPtr("1"), FeeCurrency: strPtr("EUR")},
			expectedErr: "unsupported fee currency",
		},
		{
			name: "Positive fee without currency",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1"), UnitPriceUSD: dec("50000"),
				FeeAmount: decPtr("1")},
			expectedErr: "unsupported fee currency",
		},
		{
			name: "Currency without fee",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1"), UnitPriceUSD: dec("50000"),
				FeeAmount: decPtr("0"), FeeCurrency: strPtr("USD")},
			expectedErr: "feeCurrency requires feeAmount greater than zero",
		},
		{
			name:        "Zero gross amount",
			in:          FeeInput{AssetSymbol: "BTC", GrossAmount: dec("0"), UnitPriceUSD: dec("50000")},
			expectedErr: "grossAmount must be greater than zero",
		},
		{
			name:        "Negative unit price",
			in:          FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1"), UnitPriceUSD: dec("-1")},
			expectedErr: "unitPriceUsd must be greater than zero",
		},
		{
			name: "Negative fee",
			in: FeeInput{AssetSymbol: "BTC", GrossAmount: dec("1"), UnitPriceUSD: dec("1"),
				FeeAmount: decPtr("-0.1"), FeeCurrency: strPtr("USD")},
			expectedErr: "feeAmount must not be negative",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ComputeFees(tc.in)

			if tc.expectedErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tc.expectedNet).Equal(res.NetAmount), "net: got %s", res.NetAmount)
			assert.True(t, dec(tc.expectedTotal).Equal(res.TotalSpentUSD), "total: got %s", res.TotalSpentUSD)
			assert.True(t, dec(tc.expectedFee).Equal(res.FeeAmount), "fee: got %s", res.FeeAmount)
			assert.Equal(t, tc.expectedCcy, res.FeeCurrency)
		})
	}
}

func TestComputeFees_RoundsToPersistedScales(t *testing.T) {
	res, err := ComputeFees(FeeInput{
		AssetSymbol:  "BTC",
		GrossAmount:  dec("0.333333333333333333333"),
		UnitPriceUSD: dec("3"),
	})

	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", res.NetAmount.String())
	assert.Equal(t, "1", res.TotalSpentUSD.String())
}
