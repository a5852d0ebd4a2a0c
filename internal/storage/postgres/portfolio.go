package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

// Portfolio loads every strategy balance of a user.
func (s *Store) Portfolio(ctx context.Context, userID string) (models.Portfolio, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT strategy, balance, updated_at
		FROM portfolio_balances
		WHERE user_id = $1
		ORDER BY strategy`, userID)
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("query portfolio: %w", err)
	}
	defer rows.Close()

	p := models.Portfolio{UserID: userID, Balances: make(map[string]decimal.Decimal)}
	for rows.Next() {
		var (
			strategy  string
			balance   decimal.Decimal
			updatedAt time.Time
		)
		if err := rows.Scan(&strategy, &balance, &updatedAt); err != nil {
			return models.Portfolio{}, fmt.Errorf("scan portfolio: %w", err)
		}
		p.Balances[strategy] = balance
		if updatedAt.After(p.UpdatedAt) {
			p.UpdatedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return models.Portfolio{}, fmt.Errorf("iterate portfolio: %w", err)
	}
	if len(p.Balances) == 0 {
		return models.Portfolio{}, storage.ErrNotFound
	}
	return p, nil
}

// ApplyLedgerEntry adjusts a balance with a conditional atomic update so
// concurrent writers cannot lose updates or overdraw, and records the
// transaction in the same database transaction.
func (s *Store) ApplyLedgerEntry(ctx context.Context, entry models.LedgerEntry) (decimal.Decimal, error) {
	txn := entry.Transaction
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.At.IsZero() {
		txn.At = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin ledger entry: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	if entry.Delta.IsPositive() {
		err = tx.QueryRow(ctx, `
			INSERT INTO portfolio_balances (user_id, strategy, balance, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, strategy)
			DO UPDATE SET balance = portfolio_balances.balance + EXCLUDED.balance, updated_at = NOW()
			RETURNING balance`,
			txn.UserID, txn.Asset, entry.Delta).Scan(&balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("credit balance: %w", mapConstraintError(err))
		}
	} else {
		err = tx.QueryRow(ctx, `
			UPDATE portfolio_balances
			SET balance = balance + $3, updated_at = NOW()
			WHERE user_id = $1 AND strategy = $2 AND balance + $3 >= 0
			RETURNING balance`,
			txn.UserID, txn.Asset, entry.Delta).Scan(&balance)
		if err != nil {
			if noRows(err) {
				return decimal.Zero, s.missingOrInsufficient(ctx, txn.UserID, txn.Asset)
			}
			return decimal.Zero, fmt.Errorf("debit balance: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, asset, action, amount, term, vault_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		txn.ID, txn.UserID, txn.Asset, string(txn.Action), txn.Amount, txn.Term, txn.VaultID, txn.Status, txn.At); err != nil {
		return decimal.Zero, fmt.Errorf("insert transaction: %w", err)
	}

	changed := []string{storepath.Portfolio(txn.UserID)}
	if txn.VaultID != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO vault_activity (id, vault_id, user_id, action, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), txn.VaultID, txn.UserID, string(txn.Action), txn.Amount, txn.At); err != nil {
			return decimal.Zero, fmt.Errorf("insert vault activity: %w", err)
		}
		changed = append(changed, storepath.VaultActivity(txn.VaultID))
	}

	if err := notify(ctx, tx, changed...); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit ledger entry: %w", err)
	}
	return balance, nil
}

func (s *Store) missingOrInsufficient(ctx context.Context, userID, strategy string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM portfolio_balances WHERE user_id = $1 AND strategy = $2)`,
		userID, strategy).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check balance %s/%s: %w", userID, strategy, err)
	}
	if exists {
		return storage.ErrInsufficientBalance
	}
	return storage.ErrNotFound
}

// ListTransactions returns the newest transactions of a user first.
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, asset, action, amount, term, vault_id, status, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t      models.Transaction
			action string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Asset, &action, &t.Amount, &t.Term, &t.VaultID, &t.Status, &t.At); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Action = models.Action(action)
		out = append(out, t)
	}
	return out, rows.Err()
}
