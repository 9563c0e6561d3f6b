package analytics

import (
	"sort"

	"github.com/Mocksi/bilan-sub001/internal/correlate"
	"github.com/Mocksi/bilan-sub001/internal/model"
)

// journeyStats groups step events by journey name. An occurrence is one
// run of a journey (its journey_id, or per-user when the id is absent);
// it counts as completed when any of its steps carries the completion
// flag. Top-N by occurrence count, ties broken by earlier first-seen.
func journeyStats(events []model.Event, topN int) *JourneyStats {
	type occSet struct {
		firstSeen int
		completed map[string]bool
		total     map[string]bool
	}
	byName := map[string]*occSet{}
	order := 0

	for _, e := range events {
		if e.EventType != model.TypeJourneyStep {
			continue
		}
		props := correlate.Properties(e)
		name := stringPropTrim(props, "journeyName")
		if name == "" {
			name = "unknown"
		}
		occ := ""
		if e.JourneyID != nil && *e.JourneyID != "" {
			occ = *e.JourneyID
		} else {
			occ = "user:" + e.UserID
		}

		set, ok := byName[name]
		if !ok {
			set = &occSet{firstSeen: order, completed: map[string]bool{}, total: map[string]bool{}}
			byName[name] = set
			order++
		}
		set.total[occ] = true
		if boolProp(props, "completed") {
			set.completed[occ] = true
		}
	}

	s := &JourneyStats{Items: []JourneyItem{}}
	type ranked struct {
		item      JourneyItem
		firstSeen int
	}
	var all []ranked
	for name, set := range byName {
		item := JourneyItem{
			Name:        name,
			Occurrences: len(set.total),
			Completed:   len(set.completed),
		}
		if item.Occurrences > 0 {
			item.CompletionRate = float64(item.Completed) / float64(item.Occurrences) * 100
		}
		s.TotalOccurrences += item.Occurrences
		all = append(all, ranked{item: item, firstSeen: set.firstSeen})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].item.Occurrences != all[j].item.Occurrences {
			return all[i].item.Occurrences > all[j].item.Occurrences
		}
		return all[i].firstSeen < all[j].firstSeen
	})
	if topN > 0 && len(all) > topN {
		all = all[:topN]
	}
	for _, r := range all {
		s.Items = append(s.Items, r.item)
	}
	return s
}
