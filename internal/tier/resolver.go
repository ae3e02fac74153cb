// Package tier maps a membership balance onto the tier ladder of a tiered program.
package tier

import (
	"sort"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

// Resolve returns the tier with the greatest MinPoints not above points, or nil
// when no tier qualifies. The input slice is not reordered.
func Resolve(points int64, tiers []model.TierLevel) *model.TierLevel {
	if len(tiers) == 0 {
		return nil
	}

	sorted := make([]model.TierLevel, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints > sorted[j].MinPoints
	})

	for i := range sorted {
		if sorted[i].MinPoints <= points {
			t := sorted[i]
			return &t
		}
	}
	return nil
}

// Multiplier returns the tier's multiplier, or 1 when no tier qualifies.
func Multiplier(t *model.TierLevel) float64 {
	if t == nil {
		return 1
	}
	return t.Multiplier
}

// ID returns the tier id or nil.
func ID(t *model.TierLevel) *int64 {
	if t == nil {
		return nil
	}
	id := t.ID
	return &id
}
