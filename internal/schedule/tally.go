// Package schedule ranks topics by votes and allocates them into the room grid.
package schedule

import (
	"sort"

	"topicvote/internal/model"
)

// TopicCount is one line of the tally.
type TopicCount struct {
	Topic string
	Count int
}

// Tally counts, for every catalog topic, the participants whose vote includes it.
// Votes for topics no longer in the catalog are ignored and topics nobody voted
// for are omitted. Order: count descending, then catalog order.
func Tally(votes map[string][]string, catalog []string) []TopicCount {
	position := make(map[string]int, len(catalog))
	for i, t := range catalog {
		if _, dup := position[t]; !dup {
			position[t] = i
		}
	}

	counts := make(map[string]int, len(catalog))
	for _, selection := range votes {
		seen := make(map[string]struct{}, len(selection))
		for _, t := range selection {
			if _, ok := position[t]; !ok {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			counts[t]++
		}
	}

	out := make([]TopicCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TopicCount{Topic: t, Count: c})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return position[out[i].Topic] < position[out[j].Topic]
	})
	return out
}

// TallyState is Tally over a store.
func TallyState(s *model.State) []TopicCount {
	return Tally(s.Votes, s.Topics)
}
