package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hongminglow/vault-be/internal/storage"
)

// Publisher accepts changed store paths.
type Publisher interface {
	Publish(ctx context.Context, changed ...string)
}

// PgListener forwards Postgres notifications on storage.ChangeChannel to a
// Publisher. It holds one pooled connection for the lifetime of Run.
type PgListener struct {
	pool      *pgxpool.Pool
	publisher Publisher
	reconnect time.Duration
}

// NewPgListener creates a listener over pool.
func NewPgListener(pool *pgxpool.Pool, publisher Publisher) *PgListener {
	return &PgListener{pool: pool, publisher: publisher, reconnect: 2 * time.Second}
}

// Run blocks until ctx is cancelled. A dropped connection is re-established
// after a pause; changes committed while disconnected are republished as a
// full refresh once the listener is back.
func (l *PgListener) Run(ctx context.Context) {
	slog.Info("PgListener: starting", "channel", storage.ChangeChannel)
	first := true
	for {
		err := l.listen(ctx, !first)
		if ctx.Err() != nil {
			slog.Info("PgListener: shutting down")
			return
		}
		first = false
		slog.Error("PgListener: connection lost", "error", err)

		select {
		case <-ctx.Done():
			slog.Info("PgListener: shutting down")
			return
		case <-time.After(l.reconnect):
		}
	}
}

func (l *PgListener) listen(ctx context.Context, refresh bool) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{storage.ChangeChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if refresh {
		l.publisher.Publish(ctx, "users", "userPositions", "allVaults", "vaults", "markets", "leaderboard", "announcements")
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.publisher.Publish(ctx, n.Payload)
	}
}
