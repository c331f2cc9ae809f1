package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/memory"
	"position-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const owner = "owner-1"

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ResetOnBuy(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type fixture struct {
	store    *memory.Store
	ledger   *Ledger
	btc      *models.Asset
	eth      *models.Asset
	binance  *models.Exchange
	kraken   *models.Exchange
	observer *mockObserver
}

func setupLedger(t *testing.T) *fixture {
	ctx := context.Background()
	st := memory.New()

	btc := &models.Asset{Symbol: "BTC", Name: "Bitcoin"}
	require.NoError(t, st.CreateAsset(ctx, btc))
	eth := &models.Asset{Symbol: "ETH", Name: "Ether"}
	require.NoError(t, st.CreateAsset(ctx, eth))
	bn := &models.Exchange{Name: "Binance"}
	require.NoError(t, st.CreateExchange(ctx, bn))
	kr := &models.Exchange{Name: "Kraken"}
	require.NoError(t, st.CreateExchange(ctx, kr))

	obs := new(mockObserver)
	return &fixture{
		store:    st,
		ledger:   NewLedger(st, st, obs, zap.NewNop()),
		btc:      btc,
		eth:      eth,
		binance:  bn,
		kraken:   kr,
		observer: obs,
	}
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *fixture) record(t *testing.T, asset *models.Asset, ex *models.Exchange, typ models.TransactionType, gross, price string, day int) *models.Transaction {
	t.Helper()
	tx, err := f.ledger.Record(context.Background(), RecordInput{
		OwnerID:      owner,
		AssetID:      asset.ID,
		ExchangeID:   ex.ID,
		Type:         typ,
		GrossAmount:  dec(gross),
		UnitPriceUSD: dec(price),
		Date:         day0.AddDate(0, 0, day),
	})
	require.NoError(t, err)
	return tx
}

func TestLedger_Record_BuyNotifiesObserver(t *testing.T) {
	// Arrange
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil).Once()

	// Act
	tx, err := f.ledger.Record(context.Background(), RecordInput{
		OwnerID:      owner,
		AssetID:      f.btc.ID,
		ExchangeID:   f.binance.ID,
		Type:         models.TransactionBuy,
		GrossAmount:  dec("1.5"),
		FeeAmount:    decPtr("10"),
		FeeCurrency:  strPtr("usd"),
		UnitPriceUSD: dec("50000"),
		Date:         day0,
	})

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)
	assert.True(t, dec("75010").Equal(tx.TotalSpentUSD))
	assert.Equal(t, "USD", *tx.FeeCurrency)
	assert.False(t, tx.RealizedPnL.Valid)
	f.observer.AssertExpectations(t)

	stored, err := f.ledger.Get(context.Background(), owner, tx.ID)
	require.NoError(t, err)
	assert.True(t, dec("1.5").Equal(stored.NetAmount))
}

func TestLedger_Record_ObserverFailureIsNotFatal(t *testing.T) {
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(errors.New("peak store down"))

	_, err := f.ledger.Record(context.Background(), RecordInput{
		OwnerID: owner, AssetID: f.btc.ID, ExchangeID: f.binance.ID,
		Type: models.TransactionBuy, GrossAmount: dec("1"), UnitPriceUSD: dec("100"),
	})

	assert.NoError(t, err)
}

func TestLedger_Record_SellRealizesWeightedAverageProfit(t *testing.T) {
	// Arrange
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(nil)
	f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "100", 0)
	f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "200", 1)

	// Act: average cost is 150, selling 0.5 at 300
	sell := f.record(t, f.btc, f.binance, models.TransactionSell, "0.5", "300", 2)

	// Assert
	require.True(t, sell.RealizedPnL.Valid)
	assert.True(t, dec("75").Equal(sell.RealizedPnL.Decimal), "got %s", sell.RealizedPnL.Decimal)

	txs, err := f.ledger.List(context.Background(), owner)
	require.NoError(t, err)
	aggs := Aggregate(txs, Names{})
	require.Len(t, aggs, 1)
	assert.True(t, dec("1.5").Equal(aggs[0].CurrentBalance))
	assert.True(t, dec("225").Equal(aggs[0].TotalInvestedUSD))
	assert.True(t, dec("150").Equal(aggs[0].AvgBuyPrice))
}

func TestLedger_Record_SellIsScopedToExchange(t *testing.T) {
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(nil)
	f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "100", 0)

	_, err := f.ledger.Record(context.Background(), RecordInput{
		OwnerID: owner, AssetID: f.btc.ID, ExchangeID: f.kraken.ID,
		Type: models.TransactionSell, GrossAmount: dec("0.5"), UnitPriceUSD: dec("120"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestLedger_Record_SellWholePositionEmptiesCostBasis(t *testing.T) {
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(nil)
	f.record(t, f.eth, f.kraken, models.TransactionBuy, "3", "1000", 0)

	sell := f.record(t, f.eth, f.kraken, models.TransactionSell, "3", "900", 1)

	assert.True(t, dec("-300").Equal(sell.RealizedPnL.Decimal))
	txs, err := f.ledger.List(context.Background(), owner)
	require.NoError(t, err)
	aggs := Aggregate(txs, Names{})
	require.Len(t, aggs, 1)
	assert.True(t, aggs[0].CurrentBalance.IsZero())
	assert.True(t, aggs[0].TotalInvestedUSD.IsZero())
	assert.True(t, aggs[0].AvgBuyPrice.IsZero())
}

func TestLedger_Record_BackdatedSellUsesCostOnItsDate(t *testing.T) {
	// Arrange
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(nil)
	f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "100", 0)
	f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "300", 10)

	// Act: on day 5 only the first buy is held, at a cost of 100
	sell := f.record(t, f.btc, f.binance, models.TransactionSell, "0.5", "200", 5)

	// Assert
	require.True(t, sell.RealizedPnL.Valid)
	assert.True(t, dec("50").Equal(sell.RealizedPnL.Decimal), "got %s", sell.RealizedPnL.Decimal)

	txs, err := f.ledger.List(context.Background(), owner)
	require.NoError(t, err)
	aggs := Aggregate(txs, Names{})
	require.Len(t, aggs, 1)
	assert.True(t, dec("1.5").Equal(aggs[0].CurrentBalance))
	assert.True(t, dec("350").Equal(aggs[0].TotalInvestedUSD))
}

func TestLedger_Record_BackdatedSellRejected(t *testing.T) {
	testCases := []struct {
		name    string
		gross   string
		day     int
		message string
	}{
		{name: "Before any buy", gross: "0.5", day: -1, message: "holding 0 on 2023-12-31"},
		{name: "Leaves a later sell uncovered", gross: "0.5", day: 1, message: "leaves the sell of 2024-01-03 uncovered"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			f := setupLedger(t)
			f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(nil)
			f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "100", 0)
			f.record(t, f.btc, f.binance, models.TransactionSell, "0.8", "120", 2)

			// Act
			_, err := f.ledger.Record(context.Background(), RecordInput{
				OwnerID: owner, AssetID: f.btc.ID, ExchangeID: f.binance.ID,
				Type: models.TransactionSell, GrossAmount: dec(tc.gross), UnitPriceUSD: dec("110"),
				Date: day0.AddDate(0, 0, tc.day),
			})

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tc.message)
			txs, err := f.ledger.List(context.Background(), owner)
			require.NoError(t, err)
			assert.Len(t, txs, 2)
		})
	}
}

func TestLedger_Record_Rejects(t *testing.T) {
	f := setupLedger(t)

	testCases := []struct {
		name        string
		in          RecordInput
		expectedErr error
	}{
		{
			name:        "Missing owner",
			in:          RecordInput{AssetID: f.btc.ID, ExchangeID: f.binance.ID, Type: models.TransactionBuy, GrossAmount: dec("1"), UnitPriceUSD: dec("1")},
			expectedErr: apperr.ErrValidation,
		},
		{
			name:        "Unknown type",
			in:          RecordInput{OwnerID: owner, AssetID: f.btc.ID, ExchangeID: f.binance.ID, Type: "HOLD", GrossAmount: dec("1"), UnitPriceUSD: dec("1")},
			expectedErr: apperr.ErrValidation,
		},
		{
			name:        "Unknown asset",
			in:          RecordInput{OwnerID: owner, AssetID: 9999, ExchangeID: f.binance.ID, Type: models.TransactionBuy, GrossAmount: dec("1"), UnitPriceUSD: dec("1")},
			expectedErr: apperr.ErrNotFound,
		},
		{
			name:        "Unknown exchange",
			in:          RecordInput{OwnerID: owner, AssetID: f.btc.ID, ExchangeID: 9999, Type: models.TransactionBuy, GrossAmount: dec("1"), UnitPriceUSD: dec("1")},
			expectedErr: apperr.ErrNotFound,
		},
		{
			name:        "Sell with no holdings",
			in:          RecordInput{OwnerID: owner, AssetID: f.eth.ID, ExchangeID: f.binance.ID, Type: models.TransactionSell, GrossAmount: dec("1"), UnitPriceUSD: dec("1")},
			expectedErr: apperr.ErrValidation,
		},
		{
			name:        "Bad fee",
			in:          RecordInput{OwnerID: owner, AssetID: f.btc.ID, ExchangeID: f.binance.ID, Type: models.TransactionBuy, GrossAmount: dec("1"), UnitPriceUSD: dec("1"), FeeAmount: decPtr("1"), FeeCurrency: strPtr("EUR")},
			expectedErr: apperr.ErrValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.Record(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
	f.observer.AssertNotCalled(t, "ResetOnBuy", mock.Anything, mock.Anything)
}

func TestLedger_Get_ForeignOwnerIsNotFound(t *testing.T) {
	f := setupLedger(t)
	f.observer.On("ResetOnBuy", mock.Anything, mock.Anything).Return(nil)
	tx := f.record(t, f.btc, f.binance, models.TransactionBuy, "1", "100", 0)

	_, err := f.ledger.Get(context.Background(), "someone-else", tx.ID)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
