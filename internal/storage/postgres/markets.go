package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

const marketColumns = `asset, kind, supply_apy, borrow_apy, total_supply, total_borrow, liquidity, collateral_factor`

// ListMarkets returns every lending market ordered by asset symbol.
func (s *Store) ListMarkets(ctx context.Context) ([]models.Market, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+marketColumns+` FROM markets ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var out []models.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindMarket fetches one market by asset symbol.
func (s *Store) FindMarket(ctx context.Context, asset string) (models.Market, error) {
	return scanMarket(s.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE asset = $1`, asset))
}

// Positions returns a user's positions ordered by asset.
func (s *Store) Positions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, asset, supplied, borrowed
		FROM user_positions
		WHERE user_id = $1
		ORDER BY asset`, userID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.UserID, &p.Asset, &p.Supplied, &p.Borrowed); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyPositionChange locks the market row, applies the deltas to the position
// and the market totals, checks collateral when the change adds risk, and records the transaction and the
// optional NFT in one database transaction.
func (s *Store) ApplyPositionChange(ctx context.Context, change models.PositionChange) (models.Position, error) {
	txn := change.Transaction
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.At.IsZero() {
		txn.At = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Position{}, fmt.Errorf("begin position change: %w", err)
	}
	defer tx.Rollback(ctx)

	market, err := scanMarket(tx.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE asset = $1 FOR UPDATE`, txn.Asset))
	if err != nil {
		return models.Position{}, err
	}

	var pos models.Position
	err = tx.QueryRow(ctx, `
		INSERT INTO user_positions (user_id, asset, supplied, borrowed, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, asset) DO UPDATE
		SET supplied = user_positions.supplied + EXCLUDED.supplied,
		    borrowed = user_positions.borrowed + EXCLUDED.borrowed,
		    updated_at = NOW()
		RETURNING user_id, asset, supplied, borrowed`,
		txn.UserID, txn.Asset, change.SuppliedDelta, change.BorrowedDelta,
	).Scan(&pos.UserID, &pos.Asset, &pos.Supplied, &pos.Borrowed)
	if err != nil {
		return models.Position{}, fmt.Errorf("update position: %w", mapConstraintError(err))
	}
	if change.AddsRisk() && !pos.Collateralized(market.CollateralFactor) {
		return models.Position{}, storage.ErrInsufficientCollateral
	}

	liquidityDelta := change.SuppliedDelta.Sub(change.BorrowedDelta)
	if _, err := tx.Exec(ctx, `
		UPDATE markets
		SET total_supply = total_supply + $2, total_borrow = total_borrow + $3, liquidity = liquidity + $4
		WHERE asset = $1`,
		txn.Asset, change.SuppliedDelta, change.BorrowedDelta, liquidityDelta); err != nil {
		return models.Position{}, fmt.Errorf("update market totals: %w", mapConstraintError(err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, asset, action, amount, term, vault_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, '', '', $6, $7)`,
		txn.ID, txn.UserID, txn.Asset, string(txn.Action), txn.Amount, txn.Status, txn.At); err != nil {
		return models.Position{}, fmt.Errorf("insert transaction: %w", err)
	}

	if nft := change.NFT; nft != nil {
		id := nft.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO nfts (id, user_id, asset, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			id, nft.UserID, nft.Asset, nft.Amount, txn.At); err != nil {
			return models.Position{}, fmt.Errorf("insert nft: %w", err)
		}
	}

	if err := notify(ctx, tx, storepath.Positions(txn.UserID)); err != nil {
		return models.Position{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Position{}, fmt.Errorf("commit position change: %w", err)
	}
	return pos, nil
}

func scanMarket(row pgx.Row) (models.Market, error) {
	var (
		m    models.Market
		kind string
	)
	if err := row.Scan(&m.Asset, &kind, &m.SupplyAPY, &m.BorrowAPY, &m.TotalSupply,
		&m.TotalBorrow, &m.Liquidity, &m.CollateralFactor); err != nil {
		if noRows(err) {
			return models.Market{}, storage.ErrNotFound
		}
		return models.Market{}, err
	}
	m.Kind = models.MarketKind(kind)
	return m, nil
}
