package vaults

import (
	"sort"
	"time"

	"github.com/hongminglow/vault-be/internal/models"
)

// Bucket groups points into windows of the given width, as cut by
// time.Time.Truncate, and keeps the last sample of each window in time order.
// A non-positive width returns a sorted copy of points.
func Bucket(points []models.HistoryPoint, width time.Duration) []models.HistoryPoint {
	sorted := make([]models.HistoryPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })
	if width <= 0 || len(sorted) == 0 {
		return sorted
	}

	out := make([]models.HistoryPoint, 0, len(sorted))
	var current time.Time
	for i, p := range sorted {
		start := p.At.Truncate(width)
		if i > 0 && start.Equal(current) {
			out[len(out)-1] = models.HistoryPoint{At: start, Value: p.Value}
			continue
		}
		current = start
		out = append(out, models.HistoryPoint{At: start, Value: p.Value})
	}
	return out
}
