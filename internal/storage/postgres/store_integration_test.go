package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storepath"
)

// TestPositionChangeIntegration unwinds an under-collateralised position and
// counts the notifications one position change sends.
func TestPositionChangeIntegration(t *testing.T) {
	if os.Getenv("RUN_STORE_INTEGRATION") != "true" {
		t.Skip("set RUN_STORE_INTEGRATION=true to run this integration test")
	}
	for _, path := range []string{".env", "../.env", "../../.env", "../../../.env"} {
		_ = godotenv.Overload(path)
	}
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dbURL)
	require.NoError(t, err, "init store")
	defer store.Close()

	asset := fmt.Sprintf("IT%d", time.Now().UnixNano())
	_, err = store.Pool().Exec(ctx,
		`INSERT INTO markets (asset, kind, liquidity, collateral_factor) VALUES ($1, 'token', 1000, 0.8)`, asset)
	require.NoError(t, err)
	defer store.Pool().Exec(ctx, `DELETE FROM markets WHERE asset = $1`, asset)

	user, err := store.CreateUser(ctx, models.User{Email: strings.ToLower(asset) + "@example.com", PasswordHash: "x"}, models.DefaultStrategies)
	require.NoError(t, err)

	change := func(action models.Action, supplied, borrowed int64) (models.Position, error) {
		return store.ApplyPositionChange(ctx, models.PositionChange{
			SuppliedDelta: decimal.NewFromInt(supplied),
			BorrowedDelta: decimal.NewFromInt(borrowed),
			Transaction: models.Transaction{
				UserID: user.ID,
				Asset:  asset,
				Action: action,
				Amount: decimal.NewFromInt(max(supplied, borrowed, -supplied, -borrowed)),
				Status: models.TransactionStatusCompleted,
			},
		})
	}

	_, err = change(models.ActionSupply, 100, 0)
	require.NoError(t, err)
	_, err = change(models.ActionBorrow, 0, 80)
	require.NoError(t, err)

	_, err = store.Pool().Exec(ctx, `UPDATE markets SET collateral_factor = 0.5 WHERE asset = $1`, asset)
	require.NoError(t, err)

	pos, err := change(models.ActionRepay, 0, -10)
	require.NoError(t, err, "repay must not be blocked by the collateral check")
	assert.True(t, pos.Borrowed.Equal(decimal.NewFromInt(70)))
	_, err = change(models.ActionBorrow, 0, 1)
	assert.ErrorIs(t, err, storage.ErrInsufficientCollateral)

	conn, err := store.Pool().Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	_, err = conn.Exec(ctx, "LISTEN "+storage.ChangeChannel)
	require.NoError(t, err)

	_, err = change(models.ActionSupply, 10, 0)
	require.NoError(t, err)

	counts := make(map[string]int)
	for {
		waitCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		n, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			break
		}
		counts[n.Payload]++
	}
	assert.Equal(t, 1, counts[storepath.Markets])
	assert.Equal(t, 1, counts[storepath.Positions(user.ID)])
}
