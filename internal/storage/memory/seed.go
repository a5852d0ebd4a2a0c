package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storepath"
)

// The Put helpers stand in for the external processes that maintain vaults,
// markets and feeds. Each one announces the change like any other write.

// PutVault inserts or replaces a vault.
func (s *Store) PutVault(ctx context.Context, v models.Vault) {
	s.mu.Lock()
	s.vaults[v.ID] = v
	s.mu.Unlock()
	s.emit(ctx, storepath.Vault(v.ID), storepath.Vaults)
}

// PutMarket inserts or replaces a lending market.
func (s *Store) PutMarket(ctx context.Context, m models.Market) {
	s.mu.Lock()
	s.markets[m.Asset] = m
	s.mu.Unlock()
	s.emit(ctx, storepath.Markets)
}

// PutScore inserts or replaces a leaderboard row.
func (s *Store) PutScore(ctx context.Context, e models.LeaderboardEntry) {
	s.mu.Lock()
	e.Rank = 0
	s.scores[e.UserID] = e
	s.mu.Unlock()
	s.emit(ctx, storepath.Leaderboard)
}

// PutAnnouncement appends an announcement, assigning an id and timestamp when missing.
func (s *Store) PutAnnouncement(ctx context.Context, a models.Announcement) models.Announcement {
	s.mu.Lock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = s.now()
	}
	if a.Type == "" {
		a.Type = models.AnnouncementInfo
	}
	s.announce = append(s.announce, a)
	s.mu.Unlock()
	s.emit(ctx, storepath.Announcements)
	return a
}

// InterestSubmissions returns the interest form rows in submission order.
func (s *Store) InterestSubmissions() []models.InterestSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.InterestSubmission, len(s.interest))
	copy(out, s.interest)
	return out
}

// SeedDemo fills an empty store with a few vaults, markets, scores and an
// announcement so a memory-backed server has something to show.
func (s *Store) SeedDemo(ctx context.Context) {
	d := decimal.RequireFromString

	for _, v := range []models.Vault{
		{ID: "stable-yield", Name: "Stable Yield", APR: d("8.5"), TVL: d("1250000"), Points: d("1.2"), Leader: "0x8f3a...c21d", AgeDays: 210},
		{ID: "eth-basis", Name: "ETH Basis", APR: d("14.2"), TVL: d("640000"), Points: d("2"), Leader: "0x1b77...9e04", AgeDays: 95},
		{ID: "sgd-carry", Name: "SGD Carry", APR: d("5.1"), TVL: d("310000"), Points: d("1"), AgeDays: 30},
	} {
		s.PutVault(ctx, v)
	}

	for _, m := range []models.Market{
		{Asset: "USDC", Kind: models.MarketToken, SupplyAPY: d("4.2"), BorrowAPY: d("6.8"), Liquidity: d("500000"), CollateralFactor: d("0.8")},
		{Asset: "WETH", Kind: models.MarketToken, SupplyAPY: d("2.1"), BorrowAPY: d("3.9"), Liquidity: d("1200"), CollateralFactor: d("0.75")},
		{Asset: "PUNK", Kind: models.MarketNFT, SupplyAPY: d("0"), BorrowAPY: d("9.5"), Liquidity: d("40"), CollateralFactor: d("0.4")},
	} {
		s.PutMarket(ctx, m)
	}

	now := s.now()
	for i, e := range []models.LeaderboardEntry{
		{UserID: "demo-1", Score: d("9120"), DisplayName: "Atlas"},
		{UserID: "demo-2", Score: d("7450"), DisplayName: "Bramble"},
		{UserID: "demo-3", Score: d("3020"), Wallet: "0x44c0...a7b1"},
	} {
		at := now.Add(-time.Duration(i) * time.Hour)
		e.LastUpdated = &at
		s.PutScore(ctx, e)
	}

	s.PutAnnouncement(ctx, models.Announcement{
		Title:   "Welcome",
		Content: "This server runs on the in-memory store; data resets on restart.",
		Type:    models.AnnouncementWarning,
	})
}
