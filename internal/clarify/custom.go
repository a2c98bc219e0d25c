package clarify

import (
	"context"
	"fmt"

	"movedesk/internal"
)

// CreateCustomItem registers a brand-new catalog entry for the active
// ambiguous occurrence and splices the synthetic variant into the item list
// the way a normal resolution would. When no pending entry matches the
// request (the item was added freeform rather than via a clarification), a
// new occurrence is appended instead.
func (s *Session) CreateCustomItem(ctx context.Context, draft internal.CustomItemDraft) error {
	if fields := missingDraftFields(draft); len(fields) > 0 {
		return &CustomItemValidationError{Fields: fields}
	}

	requestTypeID := ""
	startOrd := s.activeOrd
	if active, ok := s.activeEntry(); ok {
		requestTypeID = active.ItemTypeID
	}

	variant, err := s.catalog.CreateCustomItem(ctx, draft)
	if startOrd >= 0 && s.activeOrd != startOrd {
		return ErrStaleResponse
	}
	if err != nil {
		return fmt.Errorf("create custom item: %w", err)
	}

	// Match by item type: the entry's item index may have shifted since the
	// custom-item flow started.
	matched := -1
	for i, e := range s.queue {
		if e.ItemTypeID == requestTypeID {
			matched = i
			break
		}
	}

	if requestTypeID != "" && matched >= 0 {
		e := s.queue[matched]
		item := &s.items[e.ItemIndex]
		item.ItemTypeID = variant.ID
		item.NameEn = variant.NameEn
		item.NameHe = variant.NameHe
		item.IsGeneric = false
		item.RequiresVariantClarification = false
		price := variant.BasePrice
		item.UnitPrice = &price

		s.removeEntry(e.ord)
		s.completed++
		s.afterEntryRemoved()
		return nil
	}

	price := variant.BasePrice
	s.items = append(s.items, internal.ParsedItem{
		ItemTypeID:          variant.ID,
		NameEn:              variant.NameEn,
		NameHe:              variant.NameHe,
		Quantity:            1,
		Confidence:          1,
		RequiresAssembly:    draft.RequiresAssembly,
		RequiresDisassembly: draft.RequiresDisassembly,
		IsFragile:           draft.IsFragile,
		UnitPrice:           &price,
	})
	if len(s.queue) == 0 {
		s.items = Consolidate(s.items)
	}
	return nil
}

// SeedCustomDraft pre-fills a custom-item draft from the active ambiguous
// occurrence where available.
func (s *Session) SeedCustomDraft() internal.CustomItemDraft {
	draft := internal.CustomItemDraft{}
	active, ok := s.activeEntry()
	if !ok {
		return draft
	}
	draft.NameEn = active.NameEn
	draft.NameHe = active.NameHe
	if active.ItemIndex >= 0 && active.ItemIndex < len(s.items) {
		item := s.items[active.ItemIndex]
		draft.RequiresAssembly = item.RequiresAssembly
		draft.RequiresDisassembly = item.RequiresDisassembly
		draft.IsFragile = item.IsFragile
	}
	return draft
}

func missingDraftFields(draft internal.CustomItemDraft) []string {
	var fields []string
	if draft.NameEn == "" {
		fields = append(fields, "nameEn")
	}
	if draft.NameHe == "" {
		fields = append(fields, "nameHe")
	}
	if draft.Category == "" {
		fields = append(fields, "category")
	}
	return fields
}
