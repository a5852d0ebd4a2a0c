package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/hongminglow/vault-be/internal/models"
)

// VaultStore is the part of the store the history sampler needs.
type VaultStore interface {
	ListVaults(ctx context.Context) ([]models.Vault, error)
	RecordVaultHistory(ctx context.Context, points []models.VaultHistoryPoint) error
}

// HistorySampler snapshots the current APR and TVL of every vault into the
// history series the charts read.
type HistorySampler struct {
	store VaultStore
	now   func() time.Time
}

// NewHistorySampler creates a sampler over store.
func NewHistorySampler(store VaultStore) *HistorySampler {
	return &HistorySampler{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// SampleVaults records one APR and one TVL point per vault, stamped to the
// minute, and returns the number of points written.
func (s *HistorySampler) SampleVaults(ctx context.Context) (int, error) {
	list, err := s.store.ListVaults(ctx)
	if err != nil {
		return 0, fmt.Errorf("list vaults: %w", err)
	}
	if len(list) == 0 {
		return 0, nil
	}

	at := s.now().Truncate(time.Minute)
	points := lo.FlatMap(list, func(v models.Vault, _ int) []models.VaultHistoryPoint {
		return []models.VaultHistoryPoint{
			{VaultID: v.ID, Series: models.SeriesAPR, HistoryPoint: models.HistoryPoint{At: at, Value: v.APR}},
			{VaultID: v.ID, Series: models.SeriesTVL, HistoryPoint: models.HistoryPoint{At: at, Value: v.TVL}},
		}
	})
	if err := s.store.RecordVaultHistory(ctx, points); err != nil {
		return 0, fmt.Errorf("record vault history: %w", err)
	}
	return len(points), nil
}

// Sampler is implemented by HistorySampler.
type Sampler interface {
	SampleVaults(ctx context.Context) (int, error)
}

// HistoryWorker periodically samples vault history.
type HistoryWorker struct {
	sampler  Sampler
	interval time.Duration
}

// NewHistoryWorker creates a new HistoryWorker.
func NewHistoryWorker(sampler Sampler, interval time.Duration) *HistoryWorker {
	return &HistoryWorker{
		sampler:  sampler,
		interval: interval,
	}
}

// Run starts the worker loop. It blocks until the context is cancelled.
func (w *HistoryWorker) Run(ctx context.Context) {
	slog.Info("HistoryWorker: starting", "interval", w.interval)

	w.sample(ctx, "initial sample")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("HistoryWorker: shutting down")
			return
		case <-ticker.C:
			w.sample(ctx, "sample")
		}
	}
}

func (w *HistoryWorker) sample(ctx context.Context, label string) {
	n, err := w.sampler.SampleVaults(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("HistoryWorker: "+label+" failed", "error", err)
		}
		return
	}
	slog.Info("HistoryWorker: "+label+" completed", "points", n)
}
