// Package memory is an in-process storage.Store with the same semantics as the
// Postgres store. It backs local development and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

var _ storage.Store = (*Store)(nil)

// Notifier receives the store paths touched by a committed write.
type Notifier func(ctx context.Context, paths ...string)

type balanceRow struct {
	balance   decimal.Decimal
	updatedAt time.Time
}

type positionKey struct {
	userID string
	asset  string
}

type historyKey struct {
	vaultID string
	series  models.HistorySeries
}

// Store keeps every record in maps guarded by a single mutex, so each write is
// atomic with respect to every other.
type Store struct {
	mu sync.RWMutex

	users        map[string]models.User
	balances     map[string]map[string]balanceRow
	transactions map[string][]models.Transaction
	vaults       map[string]models.Vault
	history      map[historyKey][]models.HistoryPoint
	activity     map[string][]models.VaultActivity
	markets      map[string]models.Market
	positions    map[positionKey]models.Position
	nfts         map[string][]models.NFTRecord
	scores       map[string]models.LeaderboardEntry
	announce     []models.Announcement
	interest     []models.InterestSubmission

	notifier Notifier
	now      func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:        make(map[string]models.User),
		balances:     make(map[string]map[string]balanceRow),
		transactions: make(map[string][]models.Transaction),
		vaults:       make(map[string]models.Vault),
		history:      make(map[historyKey][]models.HistoryPoint),
		activity:     make(map[string][]models.VaultActivity),
		markets:      make(map[string]models.Market),
		positions:    make(map[positionKey]models.Position),
		nfts:         make(map[string][]models.NFTRecord),
		scores:       make(map[string]models.LeaderboardEntry),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier registers the callback invoked after each write.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Close is a no-op.
func (s *Store) Close() {}

// emit must be called without holding the lock.
func (s *Store) emit(ctx context.Context, paths ...string) {
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	if n != nil && len(paths) > 0 {
		n(ctx, paths...)
	}
}

func (s *Store) CreateUser(ctx context.Context, user models.User, strategies []string) (models.User, error) {
	s.mu.Lock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := s.users[user.ID]; ok {
		s.mu.Unlock()
		return models.User{}, storage.ErrAlreadyExists
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			s.mu.Unlock()
			return models.User{}, storage.ErrAlreadyExists
		}
	}

	now := s.now()
	user.Version = 1
	user.JoinedAt = now
	s.users[user.ID] = user

	rows := make(map[string]balanceRow, len(strategies))
	for _, strategy := range strategies {
		rows[strategy] = balanceRow{balance: decimal.Zero, updatedAt: now}
	}
	s.balances[user.ID] = rows
	s.mu.Unlock()

	s.emit(ctx, storepath.User(user.ID), storepath.Portfolio(user.ID))
	return user, nil
}

func (s *Store) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) UpdateProfile(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	current, ok := s.users[user.ID]
	if !ok {
		s.mu.Unlock()
		return models.User{}, storage.ErrNotFound
	}
	if current.Version != user.Version {
		s.mu.Unlock()
		return models.User{}, storage.ErrVersionConflict
	}
	current.DisplayName = user.DisplayName
	current.WalletAddress = user.WalletAddress
	current.Preferences = user.Preferences
	current.Version++
	s.users[user.ID] = current
	s.mu.Unlock()

	s.emit(ctx, storepath.User(user.ID))
	return current, nil
}

func (s *Store) UpdatePreferences(ctx context.Context, id string, prefs models.Preferences) (models.User, error) {
	s.mu.Lock()
	current, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return models.User{}, storage.ErrNotFound
	}
	current.Preferences = prefs
	current.Version++
	s.users[id] = current
	s.mu.Unlock()

	s.emit(ctx, storepath.User(id))
	return current, nil
}

func (s *Store) Portfolio(_ context.Context, userID string) (models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.balances[userID]
	if !ok || len(rows) == 0 {
		return models.Portfolio{}, storage.ErrNotFound
	}
	p := models.Portfolio{UserID: userID, Balances: make(map[string]decimal.Decimal, len(rows))}
	for strategy, row := range rows {
		p.Balances[strategy] = row.balance
		if row.updatedAt.After(p.UpdatedAt) {
			p.UpdatedAt = row.updatedAt
		}
	}
	return p, nil
}

// ApplyLedgerEntry applies the delta, the transaction and the vault activity row
// under one lock. A credit to a missing strategy creates it; a debit requires it.
func (s *Store) ApplyLedgerEntry(ctx context.Context, entry models.LedgerEntry) (decimal.Decimal, error) {
	txn := entry.Transaction
	s.mu.Lock()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.At.IsZero() {
		txn.At = s.now()
	}

	rows, ok := s.balances[txn.UserID]
	if !ok {
		if !entry.Delta.IsPositive() {
			s.mu.Unlock()
			return decimal.Zero, storage.ErrNotFound
		}
		if _, exists := s.users[txn.UserID]; !exists {
			s.mu.Unlock()
			return decimal.Zero, storage.ErrNotFound
		}
		rows = make(map[string]balanceRow)
		s.balances[txn.UserID] = rows
	}
	row, exists := rows[txn.Asset]
	if !exists && !entry.Delta.IsPositive() {
		s.mu.Unlock()
		return decimal.Zero, storage.ErrNotFound
	}
	next := row.balance.Add(entry.Delta)
	if next.IsNegative() {
		s.mu.Unlock()
		return decimal.Zero, storage.ErrInsufficientBalance
	}
	rows[txn.Asset] = balanceRow{balance: next, updatedAt: s.now()}
	s.transactions[txn.UserID] = append(s.transactions[txn.UserID], txn)

	changed := []string{storepath.Portfolio(txn.UserID)}
	if txn.VaultID != "" {
		s.activity[txn.VaultID] = append(s.activity[txn.VaultID], models.VaultActivity{
			ID:      uuid.NewString(),
			VaultID: txn.VaultID,
			UserID:  txn.UserID,
			Action:  txn.Action,
			Amount:  txn.Amount,
			At:      txn.At,
		})
		changed = append(changed, storepath.VaultActivity(txn.VaultID))
	}
	s.mu.Unlock()

	s.emit(ctx, changed...)
	return next, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.transactions[userID], limit, func(t models.Transaction) time.Time { return t.At }), nil
}

func (s *Store) ListVaults(_ context.Context) ([]models.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Values(s.vaults)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) FindVault(_ context.Context, id string) (models.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vaults[id]
	if !ok {
		return models.Vault{}, storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) VaultActivity(_ context.Context, vaultID string, limit int) ([]models.VaultActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.activity[vaultID], limit, func(a models.VaultActivity) time.Time { return a.At }), nil
}

func (s *Store) VaultHistory(_ context.Context, vaultID string, series models.HistorySeries) ([]models.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := s.history[historyKey{vaultID: vaultID, series: series}]
	out := make([]models.HistoryPoint, len(points))
	copy(out, points)
	return out, nil
}

// RecordVaultHistory keeps each series ordered by time; a sample at an
// existing instant replaces the old value.
func (s *Store) RecordVaultHistory(ctx context.Context, points []models.VaultHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	for _, p := range points {
		if _, ok := s.vaults[p.VaultID]; !ok {
			s.mu.Unlock()
			return storage.ErrNotFound
		}
	}
	for _, p := range points {
		key := historyKey{vaultID: p.VaultID, series: p.Series}
		series := s.history[key]
		i := sort.Search(len(series), func(i int) bool { return !series[i].At.Before(p.At) })
		if i < len(series) && series[i].At.Equal(p.At) {
			series[i].Value = p.Value
			continue
		}
		series = append(series, models.HistoryPoint{})
		copy(series[i+1:], series[i:])
		series[i] = p.HistoryPoint
		s.history[key] = series
	}
	s.mu.Unlock()

	ids := lo.Uniq(lo.Map(points, func(p models.VaultHistoryPoint, _ int) string { return p.VaultID }))
	s.emit(ctx, lo.Map(ids, func(id string, _ int) string { return storepath.Vault(id) })...)
	return nil
}

func (s *Store) ListMarkets(_ context.Context) ([]models.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Values(s.markets)
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (s *Store) FindMarket(_ context.Context, asset string) (models.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[asset]
	if !ok {
		return models.Market{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) Positions(_ context.Context, userID string) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Filter(lo.Values(s.positions), func(p models.Position, _ int) bool { return p.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (s *Store) ApplyPositionChange(ctx context.Context, change models.PositionChange) (models.Position, error) {
	txn := change.Transaction
	s.mu.Lock()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.At.IsZero() {
		txn.At = s.now()
	}

	market, ok := s.markets[txn.Asset]
	if !ok {
		s.mu.Unlock()
		return models.Position{}, storage.ErrNotFound
	}
	key := positionKey{userID: txn.UserID, asset: txn.Asset}
	pos, ok := s.positions[key]
	if !ok {
		pos = models.Position{UserID: txn.UserID, Asset: txn.Asset}
	}
	pos.Supplied = pos.Supplied.Add(change.SuppliedDelta)
	pos.Borrowed = pos.Borrowed.Add(change.BorrowedDelta)
	if pos.Supplied.IsNegative() || pos.Borrowed.IsNegative() {
		s.mu.Unlock()
		return models.Position{}, storage.ErrInsufficientBalance
	}
	if change.AddsRisk() && !pos.Collateralized(market.CollateralFactor) {
		s.mu.Unlock()
		return models.Position{}, storage.ErrInsufficientCollateral
	}
	liquidity := market.Liquidity.Add(change.SuppliedDelta).Sub(change.BorrowedDelta)
	if liquidity.IsNegative() {
		s.mu.Unlock()
		return models.Position{}, storage.ErrInsufficientLiquidity
	}

	market.TotalSupply = market.TotalSupply.Add(change.SuppliedDelta)
	market.TotalBorrow = market.TotalBorrow.Add(change.BorrowedDelta)
	market.Liquidity = liquidity
	s.markets[txn.Asset] = market
	s.positions[key] = pos
	s.transactions[txn.UserID] = append(s.transactions[txn.UserID], txn)
	if nft := change.NFT; nft != nil {
		rec := *nft
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.At = txn.At
		s.nfts[rec.UserID] = append(s.nfts[rec.UserID], rec)
	}
	s.mu.Unlock()

	s.emit(ctx, storepath.Positions(txn.UserID), storepath.Markets)
	return pos, nil
}

// NFTs returns the NFT records of a user in insertion order.
func (s *Store) NFTs(userID string) []models.NFTRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.NFTRecord, len(s.nfts[userID]))
	copy(out, s.nfts[userID])
	return out
}

func (s *Store) TopScores(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Values(s.scores)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Score.Cmp(out[j].Score); c != 0 {
			return c > 0
		}
		a, b := out[i].LastUpdated, out[j].LastUpdated
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListAnnouncements(_ context.Context, limit int) ([]models.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.announce, limit, func(a models.Announcement) time.Time { return a.At }), nil
}

func (s *Store) SubmitInterest(_ context.Context, sub models.InterestSubmission) (models.InterestSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.SubmittedAt = s.now()
	s.interest = append(s.interest, sub)
	return sub, nil
}

// newestFirst copies items sorted by descending time and truncated to limit.
func newestFirst[T any](items []T, limit int, at func(T) time.Time) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
