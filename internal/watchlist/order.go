package watchlist

import (
	"sort"

	"WatchSentinel/internal/model"
)

// Order derives the display order of entries. It does not modify its inputs.
//
// The group filter applies first. Manual mode orders by ManualRank and ignores
// SortType. Otherwise SortDefault keeps insertion order, and SortRise/SortFall
// stable-sort by ChangePercent; entries without a quote compare equal to
// anything, so they keep their relative position.
func Order(entries []model.WatchEntry, quotes model.QuoteSnapshot, state model.SortState) []model.WatchEntry {
	out := make([]model.WatchEntry, 0, len(entries))
	for _, e := range entries {
		if state.SelectedGroupID != nil && !e.InGroup(*state.SelectedGroupID) {
			continue
		}
		out = append(out, e)
	}

	if state.IsManualSort {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ManualRank < out[j].ManualRank
		})
		return out
	}

	switch state.SortType {
	case model.SortRise, model.SortFall:
		rise := state.SortType == model.SortRise
		sort.SliceStable(out, func(i, j int) bool {
			qi, okI := quotes[out[i].Code]
			qj, okJ := quotes[out[j].Code]
			if !okI || !okJ {
				return false
			}
			if rise {
				return qi.ChangePercent > qj.ChangePercent
			}
			return qi.ChangePercent < qj.ChangePercent
		})
	}
	return out
}
