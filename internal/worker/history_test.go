package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage/memory"
)

type mockSampler struct {
	callCount atomic.Int32
	err       error
}

func (m *mockSampler) SampleVaults(_ context.Context) (int, error) {
	m.callCount.Add(1)
	return 0, m.err
}

func TestHistoryWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockSampler{}
	w := NewHistoryWorker(mock, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	// Initial sample plus some ticks.
	assert.GreaterOrEqual(t, mock.callCount.Load(), int32(2))
}

func TestHistoryWorkerSurvivesErrors(t *testing.T) {
	mock := &mockSampler{err: errors.New("db down")}
	w := NewHistoryWorker(mock, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w.Run(ctx)
	assert.GreaterOrEqual(t, mock.callCount.Load(), int32(2))
}

func TestSampleVaults(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutVault(ctx, models.Vault{ID: "a", APR: decimal.NewFromInt(5), TVL: decimal.NewFromInt(1000)})
	store.PutVault(ctx, models.Vault{ID: "b", APR: decimal.NewFromInt(7), TVL: decimal.NewFromInt(50)})

	s := NewHistorySampler(store)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 45, 0, time.UTC) }

	n, err := s.SampleVaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	apr, err := store.VaultHistory(ctx, "a", models.SeriesAPR)
	require.NoError(t, err)
	require.Len(t, apr, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), apr[0].At)
	assert.True(t, apr[0].Value.Equal(decimal.NewFromInt(5)))

	tvl, err := store.VaultHistory(ctx, "b", models.SeriesTVL)
	require.NoError(t, err)
	require.Len(t, tvl, 1)
	assert.True(t, tvl[0].Value.Equal(decimal.NewFromInt(50)))

	// Sampling again in the same minute replaces rather than duplicates.
	_, err = s.SampleVaults(ctx)
	require.NoError(t, err)
	apr, err = store.VaultHistory(ctx, "a", models.SeriesAPR)
	require.NoError(t, err)
	assert.Len(t, apr, 1)
}

func TestSampleVaultsEmpty(t *testing.T) {
	n, err := NewHistorySampler(memory.NewStore()).SampleVaults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
