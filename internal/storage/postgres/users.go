package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

const userColumns = `id, email, display_name, wallet_address, notifications, auto_compound, version, password_hash, joined_at`

// CreateUser inserts the profile and its zero-balance portfolio in one transaction.
func (s *Store) CreateUser(ctx context.Context, user models.User, strategies []string) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, wallet_address, notifications, auto_compound, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.ID, user.Email, user.DisplayName, user.WalletAddress,
		user.Preferences.Notifications, user.Preferences.AutoCompound, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, mapConstraintError(err)
	}

	for _, strategy := range strategies {
		if _, err := tx.Exec(ctx,
			`INSERT INTO portfolio_balances (user_id, strategy) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			created.ID, strategy); err != nil {
			return models.User{}, fmt.Errorf("seed portfolio %s: %w", strategy, err)
		}
	}

	if err := notify(ctx, tx, storepath.User(created.ID), storepath.Portfolio(created.ID)); err != nil {
		return models.User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("commit create user: %w", mapConstraintError(err))
	}
	return created, nil
}

// FindByID fetches a user by identity id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// UpdateProfile overwrites the editable profile fields when the version matches.
func (s *Store) UpdateProfile(ctx context.Context, user models.User) (models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("begin update profile: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE users
		SET display_name = $2, wallet_address = $3, notifications = $4, auto_compound = $5, version = version + 1
		WHERE id = $1 AND version = $6
		RETURNING `+userColumns,
		user.ID, user.DisplayName, user.WalletAddress,
		user.Preferences.Notifications, user.Preferences.AutoCompound, user.Version)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, s.missingOrConflict(ctx, tx, user.ID)
		}
		return models.User{}, err
	}

	if err := notify(ctx, tx, storepath.User(updated.ID)); err != nil {
		return models.User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("commit update profile: %w", err)
	}
	return updated, nil
}

// UpdatePreferences sets the preference toggles without a version check.
func (s *Store) UpdatePreferences(ctx context.Context, id string, prefs models.Preferences) (models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("begin update preferences: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE users
		SET notifications = $2, auto_compound = $3, version = version + 1
		WHERE id = $1
		RETURNING `+userColumns,
		id, prefs.Notifications, prefs.AutoCompound)
	updated, err := scanUser(row)
	if err != nil {
		return models.User{}, err
	}

	if err := notify(ctx, tx, storepath.User(id)); err != nil {
		return models.User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("commit update preferences: %w", err)
	}
	return updated, nil
}

func (s *Store) missingOrConflict(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check user %s: %w", id, err)
	}
	if exists {
		return storage.ErrVersionConflict
	}
	return storage.ErrNotFound
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.WalletAddress,
		&user.Preferences.Notifications, &user.Preferences.AutoCompound,
		&user.Version, &user.PasswordHash, &user.JoinedAt); err != nil {
		if noRows(err) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
