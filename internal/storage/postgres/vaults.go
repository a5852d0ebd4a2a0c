package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

// Missing numeric columns decode as zero; a missing leader decodes as "".
const vaultColumns = `id, name,
	COALESCE(apr, 0), COALESCE(tvl, 0), COALESCE(balance, 0), COALESCE(points, 0),
	COALESCE(leader, ''), COALESCE(age_days, 0)`

// ListVaults returns every vault ordered by name.
func (s *Store) ListVaults(ctx context.Context) ([]models.Vault, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+vaultColumns+` FROM vaults ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	var out []models.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindVault fetches one vault.
func (s *Store) FindVault(ctx context.Context, id string) (models.Vault, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE id = $1`, id)
	return scanVault(row)
}

// VaultActivity returns the newest deposits and withdrawals of a vault first.
func (s *Store) VaultActivity(ctx context.Context, vaultID string, limit int) ([]models.VaultActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, vault_id, user_id, action, amount, created_at
		FROM vault_activity
		WHERE vault_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("query vault activity: %w", err)
	}
	defer rows.Close()

	var out []models.VaultActivity
	for rows.Next() {
		var (
			a      models.VaultActivity
			action string
		)
		if err := rows.Scan(&a.ID, &a.VaultID, &a.UserID, &action, &a.Amount, &a.At); err != nil {
			return nil, fmt.Errorf("scan vault activity: %w", err)
		}
		a.Action = models.Action(action)
		out = append(out, a)
	}
	return out, rows.Err()
}

// VaultHistory returns one series of a vault in chronological order.
func (s *Store) VaultHistory(ctx context.Context, vaultID string, series models.HistorySeries) ([]models.HistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT recorded_at, value
		FROM vault_history
		WHERE vault_id = $1 AND series = $2
		ORDER BY recorded_at`, vaultID, string(series))
	if err != nil {
		return nil, fmt.Errorf("query vault history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryPoint
	for rows.Next() {
		var p models.HistoryPoint
		if err := rows.Scan(&p.At, &p.Value); err != nil {
			return nil, fmt.Errorf("scan vault history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordVaultHistory appends samples; a sample already recorded at the same
// instant is overwritten.
func (s *Store) RecordVaultHistory(ctx context.Context, points []models.VaultHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	vaultIDs := make(map[string]struct{})
	for _, p := range points {
		batch.Queue(`
			INSERT INTO vault_history (vault_id, series, recorded_at, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (vault_id, series, recorded_at) DO UPDATE SET value = EXCLUDED.value`,
			p.VaultID, string(p.Series), p.At, p.Value)
		vaultIDs[p.VaultID] = struct{}{}
	}
	for id := range vaultIDs {
		batch.Queue(`SELECT pg_notify($1, $2)`, storage.ChangeChannel, storepath.Vault(id))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record vault history: %w", err)
		}
	}
	return nil
}

func scanVault(row pgx.Row) (models.Vault, error) {
	var v models.Vault
	if err := row.Scan(&v.ID, &v.Name, &v.APR, &v.TVL, &v.Balance, &v.Points, &v.Leader, &v.AgeDays); err != nil {
		if noRows(err) {
			return models.Vault{}, storage.ErrNotFound
		}
		return models.Vault{}, err
	}
	return v, nil
}
