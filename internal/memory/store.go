// Package memory is a process-local store used for tests, demos and
// single-run tooling. Every read returns a copy so callers cannot mutate
// stored rows behind the lock.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
)

type ownerAsset struct {
	ownerID string
	assetID uint
}

// Store keeps every table in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	nextID uint

	assets       map[uint]models.Asset
	exchanges    map[uint]models.Exchange
	transactions map[uint]models.Transaction
	buys         map[ownerAsset]models.BuyStrategy
	sells        map[ownerAsset]models.SellStrategy
	peaks        map[ownerAsset]models.PricePeak
	alerts       map[uint]models.StrategyAlert
	trades       map[uint]models.AccumulationTrade

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		assets:       make(map[uint]models.Asset),
		exchanges:    make(map[uint]models.Exchange),
		transactions: make(map[uint]models.Transaction),
		buys:         make(map[ownerAsset]models.BuyStrategy),
		sells:        make(map[ownerAsset]models.SellStrategy),
		peaks:        make(map[ownerAsset]models.PricePeak),
		alerts:       make(map[uint]models.StrategyAlert),
		trades:       make(map[uint]models.AccumulationTrade),
		now:          time.Now,
	}
}

func (s *Store) Close() error { return nil }

// id hands out ids from one sequence shared by all tables. Caller holds mu.
func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// Catalog

func (s *Store) CreateAsset(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	for _, a := range s.assets {
		if a.Symbol == asset.Symbol {
			return apperr.Conflict("asset already exists")
		}
	}
	asset.ID = s.id()
	asset.CreatedAt = s.now()
	s.assets[asset.ID] = *asset
	return nil
}

func (s *Store) GetAsset(_ context.Context, id uint) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, apperr.NotFound("asset")
	}
	return &a, nil
}

func (s *Store) FindAssetBySymbol(_ context.Context, symbol string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, a := range s.assets {
		if a.Symbol == symbol {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("asset")
}

func (s *Store) ListAssets(_ context.Context) ([]models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Store) CreateExchange(_ context.Context, exchange *models.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exchange.Name = strings.TrimSpace(exchange.Name)
	for _, e := range s.exchanges {
		if e.Name == exchange.Name {
			return apperr.Conflict("exchange already exists")
		}
	}
	exchange.ID = s.id()
	exchange.CreatedAt = s.now()
	s.exchanges[exchange.ID] = *exchange
	return nil
}

func (s *Store) GetExchange(_ context.Context, id uint) (*models.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.exchanges[id]
	if !ok {
		return nil, apperr.NotFound("exchange")
	}
	return &e, nil
}

func (s *Store) FindExchangeByName(_ context.Context, name string) (*models.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	for _, e := range s.exchanges {
		if e.Name == name {
			return &e, nil
		}
	}
	return nil, apperr.NotFound("exchange")
}

func (s *Store) ListExchanges(_ context.Context) ([]models.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Exchange, 0, len(s.exchanges))
	for _, e := range s.exchanges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Ledger

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = s.id()
	tx.CreatedAt = s.now()
	s.transactions[tx.ID] = *tx
	return nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID string, id uint) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok || tx.OwnerID != ownerID {
		return nil, apperr.NotFound("transaction")
	}
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]models.Transaction, error) {
	return s.filterTransactions(func(tx *models.Transaction) bool {
		return tx.OwnerID == ownerID
	}), nil
}

func (s *Store) ListBuys(_ context.Context, ownerID string, assetID uint) ([]models.Transaction, error) {
	return s.filterTransactions(func(tx *models.Transaction) bool {
		return tx.OwnerID == ownerID && tx.AssetID == assetID && tx.Type == models.TransactionBuy
	}), nil
}

// filterTransactions returns matching rows newest (date, id) first.
func (s *Store) filterTransactions(keep func(*models.Transaction) bool) []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Transaction, 0)
	for _, tx := range s.transactions {
		if keep(&tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(&out[j]) })
	return out
}

// Strategies

func (s *Store) SaveBuyStrategy(_ context.Context, st *models.BuyStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerAsset{st.OwnerID, st.AssetID}
	now := s.now()
	if existing, ok := s.buys[key]; ok {
		st.ID = existing.ID
		st.CreatedAt = existing.CreatedAt
	} else {
		st.ID = s.id()
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	s.buys[key] = *st
	return nil
}

func (s *Store) GetBuyStrategy(_ context.Context, ownerID string, assetID uint) (*models.BuyStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.buys[ownerAsset{ownerID, assetID}]
	if !ok {
		return nil, apperr.NotFound("buy strategy")
	}
	return &st, nil
}

func (s *Store) DeleteBuyStrategy(_ context.Context, ownerID string, assetID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerAsset{ownerID, assetID}
	if _, ok := s.buys[key]; !ok {
		return apperr.NotFound("buy strategy")
	}
	delete(s.buys, key)
	return nil
}

func (s *Store) SaveSellStrategy(_ context.Context, st *models.SellStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerAsset{st.OwnerID, st.AssetID}
	now := s.now()
	if existing, ok := s.sells[key]; ok {
		st.ID = existing.ID
		st.CreatedAt = existing.CreatedAt
	} else {
		st.ID = s.id()
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	s.sells[key] = *st
	return nil
}

func (s *Store) GetSellStrategy(_ context.Context, ownerID string, assetID uint) (*models.SellStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sells[ownerAsset{ownerID, assetID}]
	if !ok {
		return nil, apperr.NotFound("sell strategy")
	}
	return &st, nil
}

func (s *Store) DeleteSellStrategy(_ context.Context, ownerID string, assetID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerAsset{ownerID, assetID}
	if _, ok := s.sells[key]; !ok {
		return apperr.NotFound("sell strategy")
	}
	delete(s.sells, key)
	return nil
}

// Peaks

func (s *Store) SavePeak(_ context.Context, p *models.PricePeak) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerAsset{p.OwnerID, p.AssetID}
	now := s.now()
	if existing, ok := s.peaks[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = s.id()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.peaks[key] = *p
	return nil
}

func (s *Store) GetPeak(_ context.Context, ownerID string, assetID uint) (*models.PricePeak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.peaks[ownerAsset{ownerID, assetID}]
	if !ok {
		return nil, apperr.NotFound("price peak")
	}
	return &p, nil
}

func (s *Store) DeletePeak(_ context.Context, ownerID string, assetID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerAsset{ownerID, assetID}
	if _, ok := s.peaks[key]; !ok {
		return apperr.NotFound("price peak")
	}
	delete(s.peaks, key)
	return nil
}

// Alerts

func (s *Store) CreateAlert(_ context.Context, a *models.StrategyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status == models.AlertPending && s.pendingLocked(a.OwnerID, a.AssetID, a.StrategyType) {
		return apperr.Conflict("pending alert already exists")
	}
	a.ID = s.id()
	a.CreatedAt = s.now()
	s.alerts[a.ID] = *a
	return nil
}

func (s *Store) GetAlert(_ context.Context, ownerID string, id uint) (*models.StrategyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok || a.OwnerID != ownerID {
		return nil, apperr.NotFound("alert")
	}
	return &a, nil
}

func (s *Store) AcknowledgeAlert(_ context.Context, ownerID string, id uint, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.alerts[id]
	if !ok || existing.OwnerID != ownerID {
		return false, apperr.NotFound("alert")
	}
	if existing.Status != models.AlertPending {
		return false, nil
	}
	existing.Status = models.AlertAcknowledged
	existing.AcknowledgedAt = &at
	s.alerts[id] = existing
	return true, nil
}

func (s *Store) DeleteAlert(_ context.Context, ownerID string, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.OwnerID != ownerID {
		return apperr.NotFound("alert")
	}
	delete(s.alerts, id)
	return nil
}

func (s *Store) ListAlerts(_ context.Context, ownerID string) ([]models.StrategyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StrategyAlert, 0)
	for _, a := range s.alerts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) HasPendingAlert(_ context.Context, ownerID string, assetID uint, typ models.StrategyType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked(ownerID, assetID, typ), nil
}

func (s *Store) pendingLocked(ownerID string, assetID uint, typ models.StrategyType) bool {
	for _, a := range s.alerts {
		if a.OwnerID == ownerID && a.AssetID == assetID && a.StrategyType == typ && a.Status == models.AlertPending {
			return true
		}
	}
	return false
}

// Trades

func (s *Store) CreateTrade(_ context.Context, t *models.AccumulationTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.trades {
		if existing.ExitTransactionID == t.ExitTransactionID {
			return apperr.Conflict("accumulation trade already exists")
		}
	}
	t.ID = s.id()
	t.CreatedAt = s.now()
	s.trades[t.ID] = *t
	return nil
}

func (s *Store) GetTrade(_ context.Context, ownerID string, id uint) (*models.AccumulationTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok || t.OwnerID != ownerID {
		return nil, apperr.NotFound("accumulation trade")
	}
	return &t, nil
}

func (s *Store) FindTradeByExit(_ context.Context, exitTransactionID uint) (*models.AccumulationTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trades {
		if t.ExitTransactionID == exitTransactionID {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("accumulation trade")
}

func (s *Store) FindTradeByReentry(_ context.Context, reentryTransactionID uint) (*models.AccumulationTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trades {
		if t.ReentryTransactionID != nil && *t.ReentryTransactionID == reentryTransactionID {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("accumulation trade")
}

func (s *Store) UpdateTrade(_ context.Context, t *models.AccumulationTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.trades[t.ID]
	if !ok || existing.OwnerID != t.OwnerID {
		return apperr.NotFound("accumulation trade")
	}
	if t.ReentryTransactionID != nil {
		for id, other := range s.trades {
			if id != t.ID && other.ReentryTransactionID != nil && *other.ReentryTransactionID == *t.ReentryTransactionID {
				return apperr.Conflict("reentry transaction already linked to a trade")
			}
		}
	}
	existing.ReentryTransactionID = t.ReentryTransactionID
	existing.NewCoinAmount = t.NewCoinAmount
	existing.AccumulationDelta = t.AccumulationDelta
	existing.Status = t.Status
	existing.ReentryPriceUSD = t.ReentryPriceUSD
	existing.PredictionNotes = t.PredictionNotes
	existing.ClosedAt = t.ClosedAt
	s.trades[t.ID] = existing
	return nil
}

func (s *Store) DeleteTrade(_ context.Context, ownerID string, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok || t.OwnerID != ownerID {
		return apperr.NotFound("accumulation trade")
	}
	delete(s.trades, id)
	return nil
}

func (s *Store) ListTrades(_ context.Context, ownerID string) ([]models.AccumulationTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AccumulationTrade, 0)
	for _, t := range s.trades {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
