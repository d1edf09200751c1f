// Package checkout partitions a cart into pickup groups by schedule signature.
package checkout

import "batard/internal/models"

// PickupGroup is a cart partition sharing one schedule signature and one
// date/time selection. It is derived state, recomputed in full whenever the
// cart or the category list changes.
type PickupGroup struct {
	Key           string            `json:"key"`
	CategoryIDs   []int64           `json:"category_ids"`
	CategoryNames string            `json:"category_names"`
	Items         []models.CartLine `json:"items"`
	Date          string            `json:"date"`
	TimeSlot      string            `json:"time_slot"`
	OrderNotes    string            `json:"order_notes,omitempty"`
}

// ComputePickupGroups groups cart lines whose categories share a schedule
// signature. Lines referencing a category absent from categories are dropped:
// a stale cart entry must not fail the whole cart. Group order and the
// category-name concatenation follow first-seen order among the lines, so the
// result is deterministic for a given input sequence and the group SET is
// independent of input permutation.
func ComputePickupGroups(lines []models.CartLine, categories []models.Category, date string) []PickupGroup {
	if len(lines) == 0 || len(categories) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Category, len(categories))
	for i := range categories {
		byID[categories[i].ID] = &categories[i]
	}

	index := make(map[string]int)
	var groups []PickupGroup

	for _, line := range lines {
		cat, ok := byID[line.CategoryID]
		if !ok {
			continue
		}
		key := cat.ScheduleKey()

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, PickupGroup{
				Key:           key,
				CategoryIDs:   []int64{cat.ID},
				CategoryNames: cat.Name,
				Date:          date,
			})
		} else if !containsID(groups[i].CategoryIDs, cat.ID) {
			groups[i].CategoryIDs = append(groups[i].CategoryIDs, cat.ID)
			groups[i].CategoryNames += ", " + cat.Name
		}

		groups[i].Items = append(groups[i].Items, line)
	}

	return groups
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
