package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/database"
	"position-tracker/internal/memory"
	"position-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const owner = "owner-1"

type testStore interface {
	AlertStore
	Close() error
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func memoryStore(*testing.T) testStore {
	return memory.New()
}

// backends returns a fresh store per backend so every test covers both.
func backends(t *testing.T) map[string]func(t *testing.T) testStore {
	return map[string]func(t *testing.T) testStore{
		"memory": memoryStore,
		"database": func(t *testing.T) testStore {
			db, err := database.NewDatabase("file::memory:")
			require.NoError(t, err)
			st := database.NewStore(db)
			t.Cleanup(func() { _ = st.Close() })
			return st
		},
	}
}

type env struct {
	store      testStore
	gen        *Generator
	strategies *Strategies
	peaks      *PeakTracker
	btc        *models.Asset
}

func setup(t *testing.T, newStore func(t *testing.T) testStore) *env {
	ctx := context.Background()
	st := newStore(t)
	btc := &models.Asset{Symbol: "BTC", Name: "Bitcoin"}
	require.NoError(t, st.CreateAsset(ctx, btc))
	return &env{
		store:      st,
		gen:        NewGenerator(st, zap.NewNop()),
		strategies: NewStrategies(st, st, zap.NewNop()),
		peaks:      NewPeakTracker(st, zap.NewNop()),
		btc:        btc,
	}
}

func (e *env) buy(t *testing.T, price string, at time.Time) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		OwnerID:       owner,
		AssetID:       e.btc.ID,
		ExchangeID:    1,
		Type:          models.TransactionBuy,
		GrossAmount:   dec("1"),
		NetAmount:     dec("1"),
		UnitPriceUSD:  dec(price),
		TotalSpentUSD: dec(price),
		Date:          at,
	}
	require.NoError(t, e.store.CreateTransaction(context.Background(), tx))
	return tx
}

func TestGenerator_SellAlert(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			now := time.Now().UTC()
			e.buy(t, "80", now.Add(-48*time.Hour))
			e.buy(t, "100", now.Add(-time.Hour))

			// Act
			alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("111"))

			// Assert
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			a := alerts[0]
			assert.Equal(t, models.StrategySell, a.StrategyType)
			assert.Equal(t, models.AlertPending, a.Status)
			assert.True(t, dec("111.00").Equal(a.TriggerPrice))
			assert.True(t, dec("100.00").Equal(a.ReferencePrice))
			assert.True(t, dec("10").Equal(a.ThresholdPercent))
			assert.Contains(t, a.Message, "BTC")
			assert.NotZero(t, a.ID)
		})
	}
}

func TestGenerator_SellBelowTarget(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			e.buy(t, "100", time.Now().UTC())

			alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("109.99"))

			require.NoError(t, err)
			assert.Empty(t, alerts)
		})
	}
}

func TestGenerator_BuyAlertAtExactTarget(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertBuy(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			_, err = e.peaks.Observe(ctx, owner, e.btc.ID, dec("120"), time.Now())
			require.NoError(t, err)

			// Act
			alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("108"))

			// Assert
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			assert.Equal(t, models.StrategyBuy, alerts[0].StrategyType)
			assert.True(t, dec("108").Equal(alerts[0].TriggerPrice))
			assert.True(t, dec("120").Equal(alerts[0].ReferencePrice))
		})
	}
}

func TestGenerator_NoOpConditions(t *testing.T) {
	testCases := []struct {
		name    string
		arrange func(t *testing.T, e *env)
		price   string
	}{
		{
			name:    "No strategies",
			arrange: func(t *testing.T, e *env) {},
			price:   "1",
		},
		{
			name: "Sell strategy without buy history",
			arrange: func(t *testing.T, e *env) {
				_, err := e.strategies.UpsertSell(context.Background(), owner, e.btc.ID, dec("5"), true)
				require.NoError(t, err)
			},
			price: "1000000",
		},
		{
			name: "Inactive sell strategy",
			arrange: func(t *testing.T, e *env) {
				_, err := e.strategies.UpsertSell(context.Background(), owner, e.btc.ID, dec("5"), false)
				require.NoError(t, err)
				e.buy(t, "100", time.Now().UTC())
			},
			price: "200",
		},
		{
			name: "Buy strategy without peak",
			arrange: func(t *testing.T, e *env) {
				_, err := e.strategies.UpsertBuy(context.Background(), owner, e.btc.ID, dec("5"), true)
				require.NoError(t, err)
			},
			price: "0.01",
		},
		{
			name: "Inactive peak",
			arrange: func(t *testing.T, e *env) {
				ctx := context.Background()
				_, err := e.strategies.UpsertBuy(ctx, owner, e.btc.ID, dec("5"), true)
				require.NoError(t, err)
				_, err = e.peaks.Observe(ctx, owner, e.btc.ID, dec("100"), time.Now())
				require.NoError(t, err)
				inactive := false
				_, err = e.peaks.Update(ctx, owner, e.btc.ID, PeakUpdate{PeakPrice: dec("100"), Active: &inactive})
				require.NoError(t, err)
			},
			price: "50",
		},
		{
			name: "Another owner's strategy",
			arrange: func(t *testing.T, e *env) {
				_, err := e.strategies.UpsertBuy(context.Background(), "owner-2", e.btc.ID, dec("5"), true)
				require.NoError(t, err)
				_, err = e.peaks.Observe(context.Background(), "owner-2", e.btc.ID, dec("100"), time.Now())
				require.NoError(t, err)
			},
			price: "50",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := setup(t, memoryStore)
			tc.arrange(t, e)

			alerts, err := e.gen.Generate(context.Background(), owner, e.btc.ID, dec(tc.price))

			require.NoError(t, err)
			assert.Empty(t, alerts)
		})
	}
}

func TestGenerator_IsIdempotent(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange: both checks trigger
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			_, err = e.strategies.UpsertBuy(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			e.buy(t, "50", time.Now().UTC())
			_, err = e.peaks.Observe(ctx, owner, e.btc.ID, dec("200"), time.Now())
			require.NoError(t, err)

			// Act
			first, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("60"))
			require.NoError(t, err)
			second, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("60"))
			require.NoError(t, err)

			// Assert
			require.Len(t, first, 2)
			assert.Equal(t, models.StrategySell, first[0].StrategyType)
			assert.Equal(t, models.StrategyBuy, first[1].StrategyType)
			assert.Empty(t, second)

			all, err := e.gen.List(ctx, owner)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestGenerator_FiresAgainAfterAcknowledge(t *testing.T) {
	e := setup(t, memoryStore)
	ctx := context.Background()
	_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
	require.NoError(t, err)
	e.buy(t, "100", time.Now().UTC())

	first, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("120"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	_, err = e.gen.Acknowledge(ctx, owner, first[0].ID)
	require.NoError(t, err)

	again, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("120"))

	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestGenerator_ConcurrentCallsCreateOneAlert(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			e.buy(t, "100", time.Now().UTC())

			var wg sync.WaitGroup
			var mu sync.Mutex
			total := 0
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("150"))
					assert.NoError(t, err)
					mu.Lock()
					total += len(alerts)
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, total)
			all, err := e.gen.List(ctx, owner)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestGenerator_Validation(t *testing.T) {
	e := setup(t, memoryStore)

	_, err := e.gen.Generate(context.Background(), owner, e.btc.ID, dec("0"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.gen.Generate(context.Background(), owner, e.btc.ID, dec("-5"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.gen.Generate(context.Background(), owner, 9999, dec("5"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGenerator_AcknowledgeIsIdempotent(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			e.buy(t, "100", time.Now().UTC())
			alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("111"))
			require.NoError(t, err)
			require.Len(t, alerts, 1)

			// Act
			first, err := e.gen.Acknowledge(ctx, owner, alerts[0].ID)
			require.NoError(t, err)
			e.gen.now = func() time.Time { return time.Now().Add(time.Hour) }
			second, err := e.gen.Acknowledge(ctx, owner, alerts[0].ID)
			require.NoError(t, err)

			// Assert
			assert.Equal(t, models.AlertAcknowledged, first.Status)
			require.NotNil(t, first.AcknowledgedAt)
			require.NotNil(t, second.AcknowledgedAt)
			assert.True(t, first.AcknowledgedAt.Equal(*second.AcknowledgedAt))
		})
	}
}

func TestGenerator_ConcurrentAcknowledgeKeepsFirstTimestamp(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			e := setup(t, newStore)
			ctx := context.Background()
			_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
			require.NoError(t, err)
			e.buy(t, "100", time.Now().UTC())
			alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("111"))
			require.NoError(t, err)
			require.Len(t, alerts, 1)

			// Act
			const callers = 8
			results := make([]*models.StrategyAlert, callers)
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					a, err := e.gen.Acknowledge(ctx, owner, alerts[0].ID)
					assert.NoError(t, err)
					results[i] = a
				}(i)
			}
			wg.Wait()

			// Assert
			stored, err := e.gen.Acknowledge(ctx, owner, alerts[0].ID)
			require.NoError(t, err)
			require.NotNil(t, stored.AcknowledgedAt)
			for _, a := range results {
				require.NotNil(t, a)
				require.NotNil(t, a.AcknowledgedAt)
				assert.True(t, stored.AcknowledgedAt.Equal(*a.AcknowledgedAt))
			}
		})
	}
}

func TestGenerator_AcknowledgeAndDeleteRequireOwnership(t *testing.T) {
	e := setup(t, memoryStore)
	ctx := context.Background()
	_, err := e.strategies.UpsertSell(ctx, owner, e.btc.ID, dec("10"), true)
	require.NoError(t, err)
	e.buy(t, "100", time.Now().UTC())
	alerts, err := e.gen.Generate(ctx, owner, e.btc.ID, dec("111"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	_, err = e.gen.Acknowledge(ctx, "intruder", alerts[0].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.gen.Delete(ctx, "intruder", alerts[0].ID), apperr.ErrNotFound)

	require.NoError(t, e.gen.Delete(ctx, owner, alerts[0].ID))
	assert.ErrorIs(t, e.gen.Delete(ctx, owner, alerts[0].ID), apperr.ErrNotFound)
}
