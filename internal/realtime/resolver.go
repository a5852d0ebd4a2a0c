// Package realtime delivers live snapshots of store paths to subscribers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/vault-be/internal/leaderboard"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

// Snapshot is the value at a path at one instant. Exists is false when the
// path has never been written; Value is then nil.
type Snapshot struct {
	Path   string    `json:"path"`
	Exists bool      `json:"exists"`
	Value  any       `json:"value,omitempty"`
	At     time.Time `json:"timestamp"`
}

// Resolver decodes the current store state at a path. It returns
// storage.ErrNotFound when nothing is stored there.
type Resolver interface {
	Resolve(ctx context.Context, p storepath.Path) (any, error)
}

// VaultDetail is the value at allVaults/{id}: the record and its series.
type VaultDetail struct {
	models.Vault
	History map[models.HistorySeries][]models.HistoryPoint `json:"history"`
}

// StoreResolver resolves paths against a storage.Store.
type StoreResolver struct {
	store            storage.Store
	leaderboardLimit int
	activityLimit    int
}

// NewStoreResolver bounds the leaderboard to leaderboardLimit rows.
func NewStoreResolver(store storage.Store, leaderboardLimit int) *StoreResolver {
	return &StoreResolver{store: store, leaderboardLimit: leaderboardLimit, activityLimit: 50}
}

// Resolve implements Resolver. Empty collections count as absent.
func (r *StoreResolver) Resolve(ctx context.Context, p storepath.Path) (any, error) {
	switch p.Kind {
	case storepath.KindUser:
		return r.store.FindByID(ctx, p.UserID)
	case storepath.KindPortfolio:
		return r.store.Portfolio(ctx, p.UserID)
	case storepath.KindStrategy:
		portfolio, err := r.store.Portfolio(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		balance, ok := portfolio.Balance(p.Strategy)
		if !ok {
			return nil, storage.ErrNotFound
		}
		return models.StrategyBalance{UserID: p.UserID, Strategy: p.Strategy, Balance: balance}, nil
	case storepath.KindVaults:
		return nonEmpty(r.store.ListVaults(ctx))
	case storepath.KindVault:
		return r.vaultDetail(ctx, p.VaultID)
	case storepath.KindVaultActivity:
		return nonEmpty(r.store.VaultActivity(ctx, p.VaultID, r.activityLimit))
	case storepath.KindMarkets:
		return nonEmpty(r.store.ListMarkets(ctx))
	case storepath.KindPositions:
		return nonEmpty(r.store.Positions(ctx, p.UserID))
	case storepath.KindLeaderboard:
		entries, err := nonEmpty(r.store.TopScores(ctx, r.leaderboardLimit))
		if err != nil {
			return nil, err
		}
		return leaderboard.Rank(entries), nil
	case storepath.KindAnnouncements:
		return nonEmpty(r.store.ListAnnouncements(ctx, 0))
	}
	return nil, fmt.Errorf("%w: kind %d", storepath.ErrInvalidPath, p.Kind)
}

func (r *StoreResolver) vaultDetail(ctx context.Context, id string) (VaultDetail, error) {
	v, err := r.store.FindVault(ctx, id)
	if err != nil {
		return VaultDetail{}, err
	}
	detail := VaultDetail{Vault: v, History: make(map[models.HistorySeries][]models.HistoryPoint)}
	for _, series := range []models.HistorySeries{models.SeriesLegacy, models.SeriesAPR, models.SeriesTVL} {
		points, err := r.store.VaultHistory(ctx, id, series)
		if err != nil {
			return VaultDetail{}, fmt.Errorf("load %s history: %w", series, err)
		}
		if len(points) > 0 {
			detail.History[series] = points
		}
	}
	return detail, nil
}

func nonEmpty[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, storage.ErrNotFound
	}
	return items, nil
}

// snapshotOf turns a resolve result into a Snapshot. Absence is not an error.
func snapshotOf(path string, value any, err error, at time.Time) (Snapshot, error) {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Snapshot{Path: path, At: at}, nil
		}
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Exists: true, Value: value, At: at}, nil
}
