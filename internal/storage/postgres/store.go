package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hongminglow/vault-be/internal/storage"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for every store path. Writes announce
// the paths they touch on storage.ChangeChannel inside the writing transaction, so
// listeners only hear about committed changes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Pool exposes the connection pool for components that need a dedicated
// connection, such as the change listener.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			wallet_address TEXT NOT NULL DEFAULT '',
			notifications BOOLEAN NOT NULL DEFAULT TRUE,
			auto_compound BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL DEFAULT 1,
			password_hash TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS portfolio_balances (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			strategy TEXT NOT NULL,
			balance NUMERIC(38,18) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, strategy)
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			asset TEXT NOT NULL,
			action TEXT NOT NULL,
			amount NUMERIC(38,18) NOT NULL,
			term TEXT NOT NULL DEFAULT '',
			vault_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS transactions_user_idx ON transactions (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS vaults (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			apr NUMERIC(20,8),
			tvl NUMERIC(38,18),
			balance NUMERIC(38,18),
			points NUMERIC(38,8),
			leader TEXT,
			age_days INT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS vault_history (
			vault_id TEXT NOT NULL REFERENCES vaults(id) ON DELETE CASCADE,
			series TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			value NUMERIC(38,18) NOT NULL,
			PRIMARY KEY (vault_id, series, recorded_at)
		);`,
		`CREATE TABLE IF NOT EXISTS vault_activity (
			id TEXT PRIMARY KEY,
			vault_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			amount NUMERIC(38,18) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS vault_activity_vault_idx ON vault_activity (vault_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS markets (
			asset TEXT PRIMARY KEY,
			kind TEXT NOT NULL DEFAULT 'token',
			supply_apy NUMERIC(20,8) NOT NULL DEFAULT 0,
			borrow_apy NUMERIC(20,8) NOT NULL DEFAULT 0,
			total_supply NUMERIC(38,18) NOT NULL DEFAULT 0,
			total_borrow NUMERIC(38,18) NOT NULL DEFAULT 0,
			liquidity NUMERIC(38,18) NOT NULL DEFAULT 0 CHECK (liquidity >= 0),
			collateral_factor NUMERIC(10,8) NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS user_positions (
			user_id TEXT NOT NULL,
			asset TEXT NOT NULL REFERENCES markets(asset),
			supplied NUMERIC(38,18) NOT NULL DEFAULT 0 CHECK (supplied >= 0),
			borrowed NUMERIC(38,18) NOT NULL DEFAULT 0 CHECK (borrowed >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, asset)
		);`,
		`CREATE TABLE IF NOT EXISTS nfts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			asset TEXT NOT NULL,
			amount NUMERIC(38,18) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id TEXT PRIMARY KEY,
			score NUMERIC(38,8) NOT NULL DEFAULT 0,
			display_name TEXT,
			wallet TEXT,
			last_updated TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS leaderboard_score_idx ON leaderboard (score DESC, last_updated DESC NULLS LAST);`,
		`CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'info' CHECK (type IN ('info', 'warning', 'success')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS interest_submissions (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			wallet_address TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		// Feeds are written by external processes; triggers announce their changes.
		`CREATE OR REPLACE FUNCTION notify_feed_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('store_changes', TG_ARGV[0]);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;`,
		`CREATE OR REPLACE FUNCTION notify_vault_change() RETURNS trigger AS $$
		BEGIN
			IF TG_OP = 'DELETE' THEN
				PERFORM pg_notify('store_changes', 'allVaults/' || OLD.id);
			ELSE
				PERFORM pg_notify('store_changes', 'allVaults/' || NEW.id);
			END IF;
			PERFORM pg_notify('store_changes', 'vaults');
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS leaderboard_changed ON leaderboard;`,
		`CREATE TRIGGER leaderboard_changed AFTER INSERT OR UPDATE OR DELETE ON leaderboard
			FOR EACH STATEMENT EXECUTE FUNCTION notify_feed_change('leaderboard');`,
		`DROP TRIGGER IF EXISTS announcements_changed ON announcements;`,
		`CREATE TRIGGER announcements_changed AFTER INSERT OR UPDATE OR DELETE ON announcements
			FOR EACH STATEMENT EXECUTE FUNCTION notify_feed_change('announcements');`,
		`DROP TRIGGER IF EXISTS markets_changed ON markets;`,
		`CREATE TRIGGER markets_changed AFTER INSERT OR UPDATE OR DELETE ON markets
			FOR EACH STATEMENT EXECUTE FUNCTION notify_feed_change('markets');`,
		`DROP TRIGGER IF EXISTS vaults_changed ON vaults;`,
		`CREATE TRIGGER vaults_changed AFTER INSERT OR UPDATE OR DELETE ON vaults
			FOR EACH ROW EXECUTE FUNCTION notify_vault_change();`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// notify announces changed paths. Inside a transaction the notification is only
// delivered on commit.
func notify(ctx context.Context, db execer, paths ...string) error {
	for _, p := range paths {
		if _, err := db.Exec(ctx, `SELECT pg_notify($1, $2)`, storage.ChangeChannel, p); err != nil {
			return fmt.Errorf("notify %s: %w", p, err)
		}
	}
	return nil
}

// mapConstraintError converts Postgres constraint violations to storage errors.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return storage.ErrAlreadyExists
		case "23503":
			return storage.ErrNotFound
		case "23514":
			if pgErr.TableName == "markets" {
				return storage.ErrInsufficientLiquidity
			}
			return storage.ErrInsufficientBalance
		}
	}
	return err
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
