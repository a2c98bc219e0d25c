package clarify

import (
	"movedesk/internal"
	"movedesk/internal/util"
)

// identityKey groups occurrences that denote the same line item: the resolved
// variant id when one exists, otherwise the normalized display name. The key
// namespaces keep a name that happens to equal a variant id from colliding.
func identityKey(item internal.ParsedItem) string {
	if item.ItemTypeID != "" {
		return "id:" + item.ItemTypeID
	}
	return "name:" + util.NormalizeName(item.DisplayName())
}

// Consolidate merges occurrences sharing an identity key: quantities sum,
// confidence becomes the group maximum, every other field is taken from the
// first-seen occurrence. First-seen order is preserved and the function is
// idempotent.
//
// Callers must only invoke this while no clarifications are outstanding;
// merging occurrences would invalidate the item indexes held by pending
// clarification entries. The session enforces that ordering.
func Consolidate(items []internal.ParsedItem) []internal.ParsedItem {
	out := make([]internal.ParsedItem, 0, len(items))
	byKey := make(map[string]int, len(items))

	for _, item := range items {
		key := identityKey(item)
		if at, ok := byKey[key]; ok {
			out[at].Quantity += item.Quantity
			if item.Confidence > out[at].Confidence {
				out[at].Confidence = item.Confidence
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, item)
	}

	return out
}
