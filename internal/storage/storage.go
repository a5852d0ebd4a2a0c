package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrVersionConflict indicates a write was based on a stale version of the record.
var ErrVersionConflict = errors.New("record was modified concurrently")

// ErrInsufficientBalance indicates a debit larger than the available balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ChangeChannel is the notification channel store writes are announced on.
const ChangeChannel = "store_changes"

// UserStore captures profile persistence.
type UserStore interface {
	// CreateUser inserts the profile and a zero balance for every strategy.
	CreateUser(ctx context.Context, user models.User, strategies []string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// UpdateProfile overwrites the profile if user.Version matches the stored version.
	UpdateProfile(ctx context.Context, user models.User) (models.User, error)
	UpdatePreferences(ctx context.Context, id string, prefs models.Preferences) (models.User, error)
}

// PortfolioStore holds per-strategy balances and the transaction log.
type PortfolioStore interface {
	Portfolio(ctx context.Context, userID string) (models.Portfolio, error)
	// ApplyLedgerEntry adjusts one strategy balance by entry.Delta and appends the
	// transaction (and vault activity when VaultID is set) in a single atomic step.
	// It returns ErrInsufficientBalance when the result would be negative.
	ApplyLedgerEntry(ctx context.Context, entry models.LedgerEntry) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// VaultStore exposes vault records and their series.
type VaultStore interface {
	ListVaults(ctx context.Context) ([]models.Vault, error)
	FindVault(ctx context.Context, id string) (models.Vault, error)
	VaultActivity(ctx context.Context, vaultID string, limit int) ([]models.VaultActivity, error)
	VaultHistory(ctx context.Context, vaultID string, series models.HistorySeries) ([]models.HistoryPoint, error)
	RecordVaultHistory(ctx context.Context, points []models.VaultHistoryPoint) error
}

// MarketStore holds lending markets and user positions.
type MarketStore interface {
	ListMarkets(ctx context.Context) ([]models.Market, error)
	FindMarket(ctx context.Context, asset string) (models.Market, error)
	Positions(ctx context.Context, userID string) ([]models.Position, error)
	// ApplyPositionChange updates the position, the market totals, the transaction
	// log and the optional NFT record atomically.
	ApplyPositionChange(ctx context.Context, change models.PositionChange) (models.Position, error)
}

// FeedStore holds read-mostly dashboard feeds and the public interest form.
type FeedStore interface {
	TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	ListAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error)
	SubmitInterest(ctx context.Context, sub models.InterestSubmission) (models.InterestSubmission, error)
}

// Store is the full backing store.
type Store interface {
	UserStore
	PortfolioStore
	VaultStore
	MarketStore
	FeedStore
	Close()
}

// ErrInsufficientCollateral indicates a position change would leave borrowing uncovered.
var ErrInsufficientCollateral = errors.New("insufficient collateral")

// ErrInsufficientLiquidity indicates a market cannot fund a borrow or withdrawal.
var ErrInsufficientLiquidity = errors.New("insufficient market liquidity")
