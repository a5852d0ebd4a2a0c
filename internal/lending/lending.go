// Package lending applies supply, borrow, repay and withdraw actions to a
// user's position in a lending market.
package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
)

var (
	// ErrUnknownAction is returned for an action other than the four market actions.
	ErrUnknownAction = errors.New("unknown market action")
	// ErrUnknownMarket is returned when the asset has no market.
	ErrUnknownMarket = errors.New("unknown market")
)

// Actions lists the accepted market actions.
var Actions = []models.Action{models.ActionSupply, models.ActionBorrow, models.ActionRepay, models.ActionWithdraw}

// Store is the persistence the service needs.
type Store interface {
	FindMarket(ctx context.Context, asset string) (models.Market, error)
	Positions(ctx context.Context, userID string) ([]models.Position, error)
	ApplyPositionChange(ctx context.Context, change models.PositionChange) (models.Position, error)
}

// Service checks market actions against the caller's position and hands the
// change to the store, which applies it atomically.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the service.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ParseAction validates a market action name.
func ParseAction(raw string) (models.Action, error) {
	a := models.Action(raw)
	if !lo.Contains(Actions, a) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
	return a, nil
}

// Apply performs action for amount on the user's asset position and returns
// the updated position.
func (s *Service) Apply(ctx context.Context, userID, asset, action, rawAmount string) (models.Position, error) {
	act, err := ParseAction(action)
	if err != nil {
		return models.Position{}, err
	}
	amount, err := ledger.ParseAmount(rawAmount)
	if err != nil {
		return models.Position{}, err
	}

	market, err := s.store.FindMarket(ctx, asset)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Position{}, fmt.Errorf("%w: %q", ErrUnknownMarket, asset)
		}
		return models.Position{}, fmt.Errorf("find market %s: %w", asset, err)
	}
	positions, err := s.store.Positions(ctx, userID)
	if err != nil {
		return models.Position{}, fmt.Errorf("load positions: %w", err)
	}
	current, ok := lo.Find(positions, func(p models.Position) bool { return p.Asset == asset })
	if !ok {
		current = models.Position{UserID: userID, Asset: asset}
	}

	change, err := plan(act, amount, market, current)
	if err != nil {
		return models.Position{}, err
	}
	change.Transaction = models.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Asset:  asset,
		Action: act,
		Amount: amount,
		Status: models.TransactionStatusCompleted,
		At:     s.now(),
	}
	if act == models.ActionSupply && market.Kind == models.MarketNFT {
		change.NFT = &models.NFTRecord{UserID: userID, Asset: asset, Amount: amount}
	}

	pos, err := s.store.ApplyPositionChange(ctx, change)
	if err != nil {
		if !isRejection(err) {
			slog.Error("position change failed", "user", userID, "asset", asset, "action", act, "error", err)
		}
		return models.Position{}, fmt.Errorf("apply %s: %w", act, err)
	}
	slog.Info("position change applied", "user", userID, "asset", asset, "action", act, "amount", amount.String())
	return pos, nil
}

// plan checks the action against the last known position and market and
// returns the deltas to apply. The store repeats the checks atomically.
func plan(act models.Action, amount decimal.Decimal, market models.Market, pos models.Position) (models.PositionChange, error) {
	cf := market.CollateralFactor
	switch act {
	case models.ActionSupply:
		return models.PositionChange{SuppliedDelta: amount}, nil

	case models.ActionBorrow:
		if pos.Borrowed.Add(amount).GreaterThan(pos.Supplied.Mul(cf)) {
			return models.PositionChange{}, storage.ErrInsufficientCollateral
		}
		if amount.GreaterThan(market.Liquidity) {
			return models.PositionChange{}, storage.ErrInsufficientLiquidity
		}
		return models.PositionChange{BorrowedDelta: amount}, nil

	case models.ActionRepay:
		if amount.GreaterThan(pos.Borrowed) {
			return models.PositionChange{}, storage.ErrInsufficientBalance
		}
		return models.PositionChange{BorrowedDelta: amount.Neg()}, nil

	case models.ActionWithdraw:
		if amount.GreaterThan(pos.Supplied) {
			return models.PositionChange{}, storage.ErrInsufficientBalance
		}
		if pos.Borrowed.GreaterThan(pos.Supplied.Sub(amount).Mul(cf)) {
			return models.PositionChange{}, storage.ErrInsufficientCollateral
		}
		if amount.GreaterThan(market.Liquidity) {
			return models.PositionChange{}, storage.ErrInsufficientLiquidity
		}
		return models.PositionChange{SuppliedDelta: amount.Neg()}, nil
	}
	return models.PositionChange{}, fmt.Errorf("%w: %q", ErrUnknownAction, act)
}

func isRejection(err error) bool {
	return errors.Is(err, storage.ErrInsufficientBalance) ||
		errors.Is(err, storage.ErrInsufficientCollateral) ||
		errors.Is(err, storage.ErrInsufficientLiquidity) ||
		errors.Is(err, storage.ErrNotFound)
}
