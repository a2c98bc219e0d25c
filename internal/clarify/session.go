package clarify

import (
	"context"
	"fmt"
	"strings"

	"movedesk/internal"
)

// State is the resolver's position in the clarification workflow. The lookup
// itself is a blocking call, so "resolving" is the span of SubmitAnswers or
// CreateCustomItem rather than an observable state.
type State string

const (
	StateIdle         State = "IDLE"
	StatePrompting    State = "PROMPTING"
	StateAlternatives State = "ALTERNATIVES"
	StateCustomNeeded State = "CUSTOM_ITEM"
	StateAllResolved  State = "ALL_RESOLVED"
)

// Outcome reports which branch a submission took.
type Outcome string

const (
	OutcomeResolved     Outcome = "RESOLVED"
	OutcomeAlternatives Outcome = "ALTERNATIVES"
	OutcomeCustomNeeded Outcome = "CUSTOM_NEEDED"
)

// VariantService is the catalog boundary the session resolves against.
type VariantService interface {
	ResolveVariant(ctx context.Context, itemTypeID string, answers map[string]string, language string) (internal.ResolveVariantResult, error)
	CreateCustomItem(ctx context.Context, draft internal.CustomItemDraft) (internal.ResolvedVariant, error)
}

// Progress is user-feedback accounting only; nothing in the control flow
// reads it. TypeOrdinal/TypeCount give the "wardrobe 2 of 3" numbering for
// the active entry, computed from the original entry list so that resolving
// siblings never renumbers instances already shown.
type Progress struct {
	Completed   int
	Total       int
	TypeOrdinal int
	TypeCount   int
}

// Session drives clarification for one draft order: it owns the working item
// list exclusively, consumes the queue one entry at a time, and merges
// resolutions back into the list. All methods run on the caller's single
// goroutine; the design deliberately serializes resolution because the
// merge-or-overwrite decision reads the current item list.
type Session struct {
	orderID  string
	language string
	catalog  VariantService

	items    []internal.ParsedItem
	queue    []entry
	original []entry
	qstate   queueState

	state        State
	activeOrd    int
	answers      map[string]string
	alternatives []internal.AlternativeVariant

	total     int
	completed int
}

// NewSession builds the working item list and the clarification queue from
// one parse result. With no clarifications pending the items are consolidated
// immediately; otherwise consolidation is deferred until the queue empties.
func NewSession(orderID string, result internal.ParseResult, catalog VariantService, language string) *Session {
	s := &Session{
		orderID:   orderID,
		language:  language,
		catalog:   catalog,
		activeOrd: -1,
		answers:   map[string]string{},
	}
	s.install(result)
	return s
}

// Restart replaces the session with a fresh parse result; the previous item
// list is discarded. Restarting with the same seed id is a no-op so that
// accidental re-delivery of one parse response cannot rebuild a live queue.
func (s *Session) Restart(result internal.ParseResult) {
	if s.qstate.phase == queueBuilt && s.qstate.seedID == result.SeedID {
		return
	}
	s.install(result)
}

func (s *Session) install(result internal.ParseResult) {
	s.items = make([]internal.ParsedItem, len(result.Items))
	copy(s.items, result.Items)

	// A seed referencing an item outside the list can never resolve; the
	// boundary drops those, but parse results also arrive from storage.
	seeds := make([]internal.ClarificationEntry, 0, len(result.VariantClarifications))
	for _, seed := range result.VariantClarifications {
		if seed.ItemIndex < 0 || seed.ItemIndex >= len(s.items) {
			continue
		}
		seeds = append(seeds, seed)
	}

	s.queue = buildQueue(seeds)
	s.original = make([]entry, len(s.queue))
	copy(s.original, s.queue)
	s.qstate = queueState{phase: queueBuilt, seedID: result.SeedID}

	s.total = len(s.queue)
	s.completed = 0
	s.answers = map[string]string{}
	s.alternatives = nil

	if len(s.queue) > 0 {
		s.activate(s.queue[0].ord)
		return
	}
	s.activeOrd = -1
	s.items = Consolidate(s.items)
	s.state = StateAllResolved
}

func (s *Session) OrderID() string { return s.orderID }

func (s *Session) State() State { return s.state }

// Items returns a snapshot of the working item list; the session keeps
// exclusive ownership of the backing array.
func (s *Session) Items() []internal.ParsedItem {
	out := make([]internal.ParsedItem, len(s.items))
	copy(out, s.items)
	return out
}

// Pending lists the outstanding clarification entries in queue order.
func (s *Session) Pending() []internal.ClarificationEntry {
	out := make([]internal.ClarificationEntry, 0, len(s.queue))
	for _, e := range s.queue {
		out = append(out, e.ClarificationEntry)
	}
	return out
}

func (s *Session) QueueLen() int { return len(s.queue) }

// Active returns the entry currently being prompted for.
func (s *Session) Active() (internal.ClarificationEntry, bool) {
	e, ok := s.activeEntry()
	if !ok {
		return internal.ClarificationEntry{}, false
	}
	return e.ClarificationEntry, true
}

func (s *Session) activeEntry() (entry, bool) {
	if s.activeOrd < 0 {
		return entry{}, false
	}
	for _, e := range s.queue {
		if e.ord == s.activeOrd {
			return e, true
		}
	}
	return entry{}, false
}

func (s *Session) activate(ord int) {
	s.activeOrd = ord
	s.answers = map[string]string{}
	s.alternatives = nil
	s.state = StatePrompting
}

// SetAnswer records one attribute answer for the active entry.
func (s *Session) SetAnswer(code, value string) error {
	if s.activeOrd < 0 {
		return ErrNoActiveEntry
	}
	s.answers[code] = value
	return nil
}

// Answers returns a copy of the answers collected so far.
func (s *Session) Answers() map[string]string {
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// SubmitAnswers validates the collected answers and resolves the active entry
// against the catalog. Validation failures and transient lookup errors leave
// the session in Prompting with answers preserved, so the caller can fix or
// retry. A response that arrives after the active entry changed is dropped.
func (s *Session) SubmitAnswers(ctx context.Context) (Outcome, error) {
	active, ok := s.activeEntry()
	if !ok || s.state != StatePrompting {
		return "", ErrNoActiveEntry
	}

	if missing := s.missingRequired(active); len(missing) > 0 {
		return "", &MissingAnswersError{Labels: missing}
	}

	result, err := s.catalog.ResolveVariant(ctx, active.ItemTypeID, s.Answers(), s.language)
	// Ordinal comparison is sufficient while the lookup blocks this goroutine:
	// a Skip followed by a Resume of the same entry would reuse the ordinal,
	// but both run on this goroutine and cannot interleave with the call. An
	// asynchronous lookup would need a per-submission token instead.
	if s.activeOrd != active.ord {
		return "", ErrStaleResponse
	}
	if err != nil {
		return "", fmt.Errorf("resolve variant: %w", err)
	}

	switch {
	case result.Found:
		s.applyResolution(active, *result.Variant)
		return OutcomeResolved, nil
	case len(result.AvailableVariants) > 0:
		s.alternatives = result.AvailableVariants
		s.state = StateAlternatives
		return OutcomeAlternatives, nil
	default:
		s.state = StateCustomNeeded
		return OutcomeCustomNeeded, nil
	}
}

// Alternatives returns the near-matches offered for the active entry.
func (s *Session) Alternatives() []internal.AlternativeVariant {
	out := make([]internal.AlternativeVariant, len(s.alternatives))
	copy(out, s.alternatives)
	return out
}

// ChooseAlternative treats the picked near-match exactly like a successful
// resolution, without a further lookup round-trip.
func (s *Session) ChooseAlternative(index int) error {
	active, ok := s.activeEntry()
	if !ok || s.state != StateAlternatives {
		return ErrNoActiveEntry
	}
	if index < 0 || index >= len(s.alternatives) {
		return fmt.Errorf("alternative index %d out of range", index)
	}

	alt := s.alternatives[index]
	s.applyResolution(active, internal.ResolvedVariant{
		ID:         alt.ID,
		NameEn:     alt.NameEn,
		NameHe:     alt.NameHe,
		BasePrice:  alt.BasePrice,
		Attributes: alt.Attributes,
	})
	return nil
}

// Back returns from the alternatives or custom-item view to the question
// prompt for the same entry, keeping previously entered answers.
func (s *Session) Back() {
	if s.state == StateAlternatives || s.state == StateCustomNeeded {
		s.alternatives = nil
		s.state = StatePrompting
	}
}

// Skip dismisses the active prompt without resolving it. The entry stays in
// the queue and remains resolvable later via Resume.
func (s *Session) Skip() {
	if s.activeOrd < 0 {
		return
	}
	s.activeOrd = -1
	s.answers = map[string]string{}
	s.alternatives = nil
	s.state = StateIdle
}

// Resume re-activates the pending entry for the given item index, typically
// from the item list's "needs clarification" indicator.
func (s *Session) Resume(itemIndex int) error {
	for _, e := range s.queue {
		if e.ItemIndex == itemIndex {
			s.activate(e.ord)
			return nil
		}
	}
	return fmt.Errorf("no pending clarification for item %d", itemIndex)
}

// ResumeNext re-activates the first pending entry.
func (s *Session) ResumeNext() bool {
	if len(s.queue) == 0 {
		return false
	}
	s.activate(s.queue[0].ord)
	return true
}

// Progress reports the user-facing counters for the current state.
func (s *Session) Progress() Progress {
	p := Progress{Completed: s.completed, Total: s.total}
	active, ok := s.activeEntry()
	if !ok {
		return p
	}
	for _, e := range s.original {
		if e.ItemTypeID != active.ItemTypeID {
			continue
		}
		p.TypeCount++
		if e.ord <= active.ord {
			p.TypeOrdinal++
		}
	}
	return p
}

// applyResolution merges the resolved occurrence into a pre-existing
// occurrence of the same variant, or overwrites it in place. The merge target
// is computed before either mutation so the branch never reads indexes it has
// already shifted.
func (s *Session) applyResolution(active entry, variant internal.ResolvedVariant) {
	target := -1
	for i := range s.items {
		if i == active.ItemIndex {
			continue
		}
		if s.items[i].ItemTypeID == variant.ID {
			target = i
			break
		}
	}

	if target >= 0 {
		gain := s.items[active.ItemIndex].Quantity
		if gain < 1 {
			gain = 1
		}
		s.items[target].Quantity += gain
		s.items = append(s.items[:active.ItemIndex], s.items[active.ItemIndex+1:]...)
		s.reindexAfterRemoval(active.ItemIndex)
	} else {
		item := &s.items[active.ItemIndex]
		item.ItemTypeID = variant.ID
		item.NameEn = variant.NameEn
		item.NameHe = variant.NameHe
		item.IsGeneric = false
		item.RequiresVariantClarification = false
		price := variant.BasePrice
		item.UnitPrice = &price
	}

	s.removeEntry(active.ord)
	s.completed++
	s.afterEntryRemoved()
}

// reindexAfterRemoval keeps every pending entry's item index valid after one
// occurrence was removed from the list.
func (s *Session) reindexAfterRemoval(removedIndex int) {
	for i := range s.queue {
		if s.queue[i].ItemIndex > removedIndex {
			s.queue[i].ItemIndex--
		}
	}
}

func (s *Session) removeEntry(ord int) {
	for i, e := range s.queue {
		if e.ord == ord {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// afterEntryRemoved activates the next pending entry, or, once the queue is
// empty, runs the deferred consolidation pass and terminates the workflow.
func (s *Session) afterEntryRemoved() {
	if len(s.queue) > 0 {
		s.activate(s.queue[0].ord)
		return
	}
	s.activeOrd = -1
	s.answers = map[string]string{}
	s.alternatives = nil
	s.items = Consolidate(s.items)
	s.state = StateAllResolved
}

func (s *Session) missingRequired(active entry) []string {
	var missing []string
	for _, q := range active.Questions {
		if !q.Required {
			continue
		}
		if strings.TrimSpace(s.answers[q.Code]) == "" {
			missing = append(missing, s.questionLabel(q))
		}
	}
	return missing
}

func (s *Session) questionLabel(q internal.AttributeQuestion) string {
	if s.language == "he" && q.LabelHe != "" {
		return q.LabelHe
	}
	if q.LabelEn != "" {
		return q.LabelEn
	}
	return q.Code
}
