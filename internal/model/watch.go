package model

// SortType selects the automatic ordering of the watchlist.
type SortType string

const (
	SortDefault SortType = "default"
	SortRise    SortType = "rise"
	SortFall    SortType = "fall"
)

// Valid reports whether t is a known sort type.
func (t SortType) Valid() bool {
	switch t {
	case SortDefault, SortRise, SortFall:
		return true
	}
	return false
}

// WatchEntry is one watched instrument.
type WatchEntry struct {
	Code       string   `json:"code"`
	GroupIDs   []string `json:"group_ids,omitempty"`
	ManualRank int      `json:"manual_rank"`
}

// InGroup reports whether the entry belongs to group id.
func (e WatchEntry) InGroup(id string) bool {
	for _, g := range e.GroupIDs {
		if g == id {
			return true
		}
	}
	return false
}

// SortState is the watchlist ordering configuration.
type SortState struct {
	SortType        SortType `json:"sort_type"`
	IsManualSort    bool     `json:"is_manual_sort"`
	SelectedGroupID *string  `json:"selected_group_id,omitempty"`
}

// WatchListState is the persisted form of the watchlist.
type WatchListState struct {
	Entries []WatchEntry `json:"entries"`
	Sort    SortState    `json:"sort"`
}
