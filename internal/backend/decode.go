package backend

import (
	"strings"

	"movedesk/internal"
)

// Parse responses vary in which fields they carry per item. The wire structs
// keep every field optional; defaults are resolved here, once, so the rest of
// the workflow never sees a partially-populated record.

type parseResultWire struct {
	Items                  []parsedItemWire             `json:"items"`
	VariantClarifications  []clarificationWire          `json:"variantClarifications"`
	ClarificationQuestions []internal.AttributeQuestion `json:"clarificationQuestions"`
	Summary                *string                      `json:"summary"`
}

type parsedItemWire struct {
	ItemTypeID                   *string  `json:"itemTypeId"`
	NameEn                       *string  `json:"nameEn"`
	NameHe                       *string  `json:"nameHe"`
	Quantity                     *int     `json:"quantity"`
	Confidence                   *float64 `json:"confidence"`
	IsGeneric                    *bool    `json:"isGeneric"`
	RequiresVariantClarification *bool    `json:"requiresVariantClarification"`
	RequiresAssembly             *bool    `json:"requiresAssembly"`
	RequiresDisassembly          *bool    `json:"requiresDisassembly"`
	IsFragile                    *bool    `json:"isFragile"`
	RequiresSpecialHandling      *bool    `json:"requiresSpecialHandling"`
	SpecialNotes                 *string  `json:"specialNotes"`
	Room                         *string  `json:"room"`
}

type clarificationWire struct {
	ItemIndex  *int           `json:"itemIndex"`
	ItemTypeID *string        `json:"itemTypeId"`
	NameEn     *string        `json:"nameEn"`
	NameHe     *string        `json:"nameHe"`
	Questions  []questionWire `json:"questions"`
}

type questionWire struct {
	Code     *string                    `json:"code"`
	LabelEn  *string                    `json:"labelEn"`
	LabelHe  *string                    `json:"labelHe"`
	Kind     *string                    `json:"kind"`
	Options  []internal.AttributeOption `json:"options"`
	Required *bool                      `json:"required"`
}

func normalizeParseResult(wire parseResultWire) internal.ParseResult {
	out := internal.ParseResult{
		Items:                 make([]internal.ParsedItem, 0, len(wire.Items)),
		VariantClarifications: make([]internal.ClarificationEntry, 0, len(wire.VariantClarifications)),
		Summary:               strDefault(wire.Summary, ""),
	}

	for _, item := range wire.Items {
		out.Items = append(out.Items, normalizeParsedItem(item))
	}
	for _, entry := range wire.VariantClarifications {
		normalized, ok := normalizeClarification(entry, len(out.Items))
		if !ok {
			continue
		}
		out.VariantClarifications = append(out.VariantClarifications, normalized)
	}

	return out
}

func normalizeParsedItem(wire parsedItemWire) internal.ParsedItem {
	item := internal.ParsedItem{
		ItemTypeID:                   strDefault(wire.ItemTypeID, ""),
		NameEn:                       strDefault(wire.NameEn, ""),
		NameHe:                       strDefault(wire.NameHe, ""),
		Quantity:                     intDefault(wire.Quantity, 1),
		Confidence:                   floatDefault(wire.Confidence, 0),
		IsGeneric:                    boolDefault(wire.IsGeneric, false),
		RequiresVariantClarification: boolDefault(wire.RequiresVariantClarification, false),
		RequiresAssembly:             boolDefault(wire.RequiresAssembly, false),
		RequiresDisassembly:          boolDefault(wire.RequiresDisassembly, false),
		IsFragile:                    boolDefault(wire.IsFragile, false),
		RequiresSpecialHandling:      boolDefault(wire.RequiresSpecialHandling, false),
		SpecialNotes:                 strDefault(wire.SpecialNotes, ""),
		Room:                         strDefault(wire.Room, ""),
	}

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.Confidence < 0 {
		item.Confidence = 0
	}
	if item.Confidence > 1 {
		item.Confidence = 1
	}
	// A clarification-pending item is by definition still generic.
	if item.RequiresVariantClarification {
		item.IsGeneric = true
	}

	return item
}

// A clarification must reference an item the same response actually carries;
// entries with a missing or out-of-range index are dropped.
func normalizeClarification(wire clarificationWire, itemCount int) (internal.ClarificationEntry, bool) {
	if wire.ItemIndex == nil || *wire.ItemIndex < 0 || *wire.ItemIndex >= itemCount {
		return internal.ClarificationEntry{}, false
	}

	entry := internal.ClarificationEntry{
		ItemIndex:  *wire.ItemIndex,
		ItemTypeID: strDefault(wire.ItemTypeID, ""),
		NameEn:     strDefault(wire.NameEn, ""),
		NameHe:     strDefault(wire.NameHe, ""),
		Questions:  make([]internal.AttributeQuestion, 0, len(wire.Questions)),
	}

	for _, q := range wire.Questions {
		code := strings.TrimSpace(strDefault(q.Code, ""))
		if code == "" {
			continue
		}
		entry.Questions = append(entry.Questions, internal.AttributeQuestion{
			Code:     code,
			LabelEn:  strDefault(q.LabelEn, code),
			LabelHe:  strDefault(q.LabelHe, code),
			Kind:     normalizeKind(q.Kind, len(q.Options)),
			Options:  q.Options,
			Required: boolDefault(q.Required, false),
		})
	}

	return entry, true
}

func normalizeKind(kind *string, optionCount int) internal.AttributeKind {
	switch strings.ToUpper(strings.TrimSpace(strDefault(kind, ""))) {
	case string(internal.KindOptions), "SELECT", "OPTION":
		return internal.KindOptions
	case string(internal.KindNumeric), "NUMBER":
		return internal.KindNumeric
	case string(internal.KindBoolean), "BOOL", "YESNO":
		return internal.KindBoolean
	}
	if optionCount > 0 {
		return internal.KindOptions
	}
	return internal.KindNumeric
}

func strDefault(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func intDefault(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func floatDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func boolDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
