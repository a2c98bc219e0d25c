package clarify

import (
	"sort"

	"movedesk/internal"
)

// queuePhase is the explicit one-shot guard for queue construction. The queue
// is derived from a parse result exactly once; later item-list mutations
// (manual edits, resolutions) must never re-derive it.
type queuePhase int

const (
	queueUninitialized queuePhase = iota
	queueBuilt
)

type queueState struct {
	phase  queuePhase
	seedID string
}

// entry wraps a clarification seed with its ordinal in the constructed queue.
// The ordinal is stable for the lifetime of one parse result and identifies
// the entry after item indexes shift; per-type progress numbering reads it.
type entry struct {
	internal.ClarificationEntry
	ord int
}

// buildQueue orders the raw per-occurrence seeds so that all occurrences of
// one generic type are visited consecutively, in original occurrence order
// within the type. Seeds sharing an item index are collapsed to the first.
func buildQueue(seeds []internal.ClarificationEntry) []entry {
	sorted := make([]internal.ClarificationEntry, 0, len(seeds))
	seenIndex := make(map[int]struct{}, len(seeds))
	for _, seed := range seeds {
		if _, dup := seenIndex[seed.ItemIndex]; dup {
			continue
		}
		seenIndex[seed.ItemIndex] = struct{}{}
		questions := make([]internal.AttributeQuestion, len(seed.Questions))
		copy(questions, seed.Questions)
		seed.Questions = questions
		sorted = append(sorted, seed)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ItemTypeID != sorted[j].ItemTypeID {
			return sorted[i].ItemTypeID < sorted[j].ItemTypeID
		}
		return sorted[i].ItemIndex < sorted[j].ItemIndex
	})

	out := make([]entry, 0, len(sorted))
	for i, seed := range sorted {
		out = append(out, entry{ClarificationEntry: seed, ord: i})
	}
	return out
}
