// Package leaderboard orders points entries for display.
package leaderboard

import (
	"sort"

	"github.com/hongminglow/vault-be/internal/models"
)

// Rank returns a sorted copy of entries with ranks 1..n assigned in order.
// Higher scores come first; equal scores put the most recently updated entry
// first, and entries without an update time sort after those with one.
func Rank(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Score.Cmp(out[j].Score); c != 0 {
			return c > 0
		}
		a, b := out[i].LastUpdated, out[j].LastUpdated
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
