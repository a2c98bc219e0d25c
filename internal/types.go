package internal

import "github.com/shopspring/decimal"

// AttributeKind is the input kind of one clarification question.
type AttributeKind string

const (
	KindOptions AttributeKind = "OPTIONS"
	KindNumeric AttributeKind = "NUMERIC"
	KindBoolean AttributeKind = "BOOLEAN"
)

type AttributeOption struct {
	Value   string `json:"value"`
	LabelEn string `json:"labelEn"`
	LabelHe string `json:"labelHe"`
}

type AttributeQuestion struct {
	Code     string            `json:"code"`
	LabelEn  string            `json:"labelEn"`
	LabelHe  string            `json:"labelHe"`
	Kind     AttributeKind     `json:"kind"`
	Options  []AttributeOption `json:"options,omitempty"`
	Required bool              `json:"required"`
}

// ParsedItem is one detected occurrence from the upstream description parser.
// When RequiresVariantClarification is set, ItemTypeID names the generic
// parent type, not a concrete variant, and IsGeneric is always true.
type ParsedItem struct {
	ItemTypeID                   string `json:"itemTypeId"`
	NameEn                       string `json:"nameEn"`
	NameHe                       string `json:"nameHe"`
	Quantity                     int    `json:"quantity"`
	Confidence                   float64 `json:"confidence"`
	IsGeneric                    bool   `json:"isGeneric"`
	RequiresVariantClarification bool   `json:"requiresVariantClarification"`
	RequiresAssembly             bool   `json:"requiresAssembly"`
	RequiresDisassembly          bool   `json:"requiresDisassembly"`
	IsFragile                    bool   `json:"isFragile"`
	RequiresSpecialHandling      bool   `json:"requiresSpecialHandling"`
	SpecialNotes                 string `json:"specialNotes,omitempty"`
	Room                         string `json:"room,omitempty"`

	// Set when the occurrence resolves to a concrete variant or custom item.
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

// DisplayName is the item's name in the fallback identity order used across
// the workflow: English first, Hebrew when the parser produced no English name.
func (p ParsedItem) DisplayName() string {
	if p.NameEn != "" {
		return p.NameEn
	}
	return p.NameHe
}

// ClarificationEntry is one pending disambiguation task. ItemIndex points into
// the current draft item list and is revalidated whenever the list mutates.
type ClarificationEntry struct {
	ItemIndex  int                 `json:"itemIndex"`
	ItemTypeID string              `json:"itemTypeId"`
	NameEn     string              `json:"nameEn"`
	NameHe     string              `json:"nameHe"`
	Questions  []AttributeQuestion `json:"questions"`
}

// ParseResult is the normalized parse response. SeedID is assigned locally,
// one per parse round-trip, and keys the one-shot queue construction guard.
type ParseResult struct {
	SeedID                string               `json:"seedId"`
	Items                 []ParsedItem         `json:"items"`
	VariantClarifications []ClarificationEntry `json:"variantClarifications"`
	Summary               string               `json:"summary,omitempty"`
}

// ResolvedVariant is a successful catalog lookup: a concrete variant with the
// attribute combination that identified it.
type ResolvedVariant struct {
	ID                   string            `json:"id"`
	NameEn               string            `json:"nameEn"`
	NameHe               string            `json:"nameHe"`
	BasePrice            decimal.Decimal   `json:"basePrice"`
	AssemblyPrice        decimal.Decimal   `json:"assemblyPrice"`
	DisassemblyPrice     decimal.Decimal   `json:"disassemblyPrice"`
	SpecialHandlingPrice decimal.Decimal   `json:"specialHandlingPrice"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}

// AlternativeVariant is a near-match offered when no exact variant fits the
// collected answers.
type AlternativeVariant struct {
	ID         string            `json:"id"`
	NameEn     string            `json:"nameEn"`
	NameHe     string            `json:"nameHe"`
	BasePrice  decimal.Decimal   `json:"basePrice"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type ResolveVariantResult struct {
	Found             bool                 `json:"found"`
	Variant           *ResolvedVariant     `json:"variant,omitempty"`
	AvailableVariants []AlternativeVariant `json:"availableVariants,omitempty"`
}

// CustomItemDraft is a user-authored catalog entry request, used when no
// existing or near-match variant suffices.
type CustomItemDraft struct {
	NameEn              string          `json:"nameEn"`
	NameHe              string          `json:"nameHe"`
	Category            string          `json:"category"`
	WeightClass         string          `json:"weightClass,omitempty"`
	SizeClass           string          `json:"sizeClass,omitempty"`
	RequiresAssembly    bool            `json:"requiresAssembly"`
	RequiresDisassembly bool            `json:"requiresDisassembly"`
	IsFragile           bool            `json:"isFragile"`
	EstimatedPrice      decimal.Decimal `json:"estimatedPrice"`
}

type CatalogItem struct {
	ID       string `json:"id"`
	NameEn   string `json:"nameEn"`
	NameHe   string `json:"nameHe"`
	Category string `json:"category"`
}

// OrderItemPayload is one finalized line item as sent to the order API.
type OrderItemPayload struct {
	ItemTypeID              string           `json:"itemTypeId"`
	NameEn                  string           `json:"nameEn"`
	NameHe                  string           `json:"nameHe"`
	Quantity                int              `json:"quantity"`
	RequiresAssembly        bool             `json:"requiresAssembly"`
	RequiresDisassembly     bool             `json:"requiresDisassembly"`
	IsFragile               bool             `json:"isFragile"`
	RequiresSpecialHandling bool             `json:"requiresSpecialHandling"`
	SpecialNotes            string           `json:"specialNotes,omitempty"`
	Room                    string           `json:"room,omitempty"`
	UnitPrice               *decimal.Decimal `json:"unitPrice,omitempty"`
}

type OrderItem struct {
	ID      string `json:"id"`
	OrderID string `json:"orderId"`
	OrderItemPayload
}

// MessageRow is one stored intake email.
type MessageRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type DraftStatus string

const (
	DraftParsed             DraftStatus = "parsed"
	DraftNeedsClarification DraftStatus = "needs_clarification"
	DraftReady              DraftStatus = "ready"
	DraftSubmitted          DraftStatus = "submitted"
	DraftFailed             DraftStatus = "failed"
)

// DraftRow is one in-progress order draft. MessageID is set when the draft
// originated from the intake mailbox.
type DraftRow struct {
	ID        string
	OrderID   string
	MessageID *int
	SeedID    string
	Summary   string
	Status    DraftStatus
}

type SubmissionRow struct {
	ID          int
	DraftID     string
	Position    int
	OrderItemID *string
	Status      string
	Error       *string
}
