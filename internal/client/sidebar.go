package client

import (
	"sort"

	"pingme/internal/models"
)

// RankRoster orders roster entries by last-activity timestamp
// descending. Entries without activity sort last; ties keep the input
// order (stable). Pure function of its input: callers can recompute it
// on every mutation.
func RankRoster(entries []models.RosterEntry) []models.RosterEntry {
	out := make([]models.RosterEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}
