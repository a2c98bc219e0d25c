package clarify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"movedesk/internal"
)

type fakeCatalog struct {
	resolve func(itemTypeID string, answers map[string]string) (internal.ResolveVariantResult, error)
	create  func(draft internal.CustomItemDraft) (internal.ResolvedVariant, error)
}

func (f *fakeCatalog) ResolveVariant(_ context.Context, itemTypeID string, answers map[string]string, _ string) (internal.ResolveVariantResult, error) {
	return f.resolve(itemTypeID, answers)
}

func (f *fakeCatalog) CreateCustomItem(_ context.Context, draft internal.CustomItemDraft) (internal.ResolvedVariant, error) {
	return f.create(draft)
}

func foundVariant(id, name string) internal.ResolveVariantResult {
	return internal.ResolveVariantResult{
		Found: true,
		Variant: &internal.ResolvedVariant{
			ID:        id,
			NameEn:    name,
			BasePrice: decimal.NewFromInt(150),
		},
	}
}

func doorsQuestion() internal.AttributeQuestion {
	return internal.AttributeQuestion{
		Code:     "doors",
		LabelEn:  "Number of doors",
		LabelHe:  "מספר דלתות",
		Kind:     internal.KindNumeric,
		Required: true,
	}
}

func genericWardrobe(qty int) internal.ParsedItem {
	return internal.ParsedItem{
		ItemTypeID:                   "wardrobe-generic",
		NameEn:                       "wardrobe",
		Quantity:                     qty,
		Confidence:                   0.7,
		IsGeneric:                    true,
		RequiresVariantClarification: true,
	}
}

func wardrobeSeed(idx int) internal.ClarificationEntry {
	return internal.ClarificationEntry{
		ItemIndex:  idx,
		ItemTypeID: "wardrobe-generic",
		NameEn:     "wardrobe",
		Questions:  []internal.AttributeQuestion{doorsQuestion()},
	}
}

func wardrobeParse(quantities ...int) internal.ParseResult {
	result := internal.ParseResult{SeedID: "seed-1"}
	for i, qty := range quantities {
		result.Items = append(result.Items, genericWardrobe(qty))
		result.VariantClarifications = append(result.VariantClarifications, wardrobeSeed(i))
	}
	return result
}

func answerAndSubmit(t *testing.T, s *Session, code, value string) Outcome {
	t.Helper()
	if err := s.SetAnswer(code, value); err != nil {
		t.Fatal(err)
	}
	outcome, err := s.SubmitAnswers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return outcome
}

func TestDuplicateResolutionMergesOccurrences(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return foundVariant("wardrobe-2d", "Wardrobe, 2 doors"), nil
	}}

	s := NewSession("ord-1", wardrobeParse(1, 1), catalog, "en")
	if s.State() != StatePrompting {
		t.Fatalf("state=%s", s.State())
	}

	if outcome := answerAndSubmit(t, s, "doors", "2"); outcome != OutcomeResolved {
		t.Fatalf("outcome=%s", outcome)
	}
	if s.QueueLen() != 1 {
		t.Fatalf("queue must shrink by one per resolution, len=%d", s.QueueLen())
	}
	if outcome := answerAndSubmit(t, s, "doors", "2"); outcome != OutcomeResolved {
		t.Fatalf("outcome=%s", outcome)
	}

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("items=%d", len(items))
	}
	if items[0].ItemTypeID != "wardrobe-2d" || items[0].Quantity != 2 {
		t.Fatalf("merged item: %+v", items[0])
	}
	if items[0].IsGeneric || items[0].RequiresVariantClarification {
		t.Fatalf("flags not cleared: %+v", items[0])
	}
	p := s.Progress()
	if p.Completed != 2 || p.Total != 2 {
		t.Fatalf("progress %d/%d", p.Completed, p.Total)
	}
	if s.State() != StateAllResolved {
		t.Fatalf("state=%s", s.State())
	}
}

func TestMergeSumsQuantities(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return foundVariant("wardrobe-2d", "Wardrobe, 2 doors"), nil
	}}

	s := NewSession("ord-1", wardrobeParse(2, 3), catalog, "en")
	answerAndSubmit(t, s, "doors", "2")
	answerAndSubmit(t, s, "doors", "2")

	items := s.Items()
	if len(items) != 1 || items[0].Quantity != 5 {
		t.Fatalf("want one occurrence with qty 5: %+v", items)
	}
}

func TestMissingRequiredAnswersStayPrompting(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		t.Fatal("lookup must not run without required answers")
		return internal.ResolveVariantResult{}, nil
	}}

	s := NewSession("ord-1", wardrobeParse(1), catalog, "he")
	_, err := s.SubmitAnswers(context.Background())
	var missing *MissingAnswersError
	if !errors.As(err, &missing) {
		t.Fatalf("err=%v", err)
	}
	if len(missing.Labels) != 1 || missing.Labels[0] != "מספר דלתות" {
		t.Fatalf("labels=%v", missing.Labels)
	}
	if s.State() != StatePrompting {
		t.Fatalf("state=%s", s.State())
	}
}

func TestAlternativesPath(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return internal.ResolveVariantResult{
			AvailableVariants: []internal.AlternativeVariant{
				{ID: "wardrobe-3d", NameEn: "Wardrobe, 3 doors", BasePrice: decimal.NewFromInt(220)},
				{ID: "wardrobe-4d", NameEn: "Wardrobe, 4 doors", BasePrice: decimal.NewFromInt(310)},
			},
		}, nil
	}}

	s := NewSession("ord-1", wardrobeParse(1), catalog, "en")
	if outcome := answerAndSubmit(t, s, "doors", "5"); outcome != OutcomeAlternatives {
		t.Fatalf("outcome=%s", outcome)
	}
	if s.State() != StateAlternatives || len(s.Alternatives()) != 2 {
		t.Fatalf("state=%s alternatives=%d", s.State(), len(s.Alternatives()))
	}

	// Back returns to the prompt with answers preserved.
	s.Back()
	if s.State() != StatePrompting || s.Answers()["doors"] != "5" {
		t.Fatalf("state=%s answers=%v", s.State(), s.Answers())
	}

	answerAndSubmit(t, s, "doors", "5")
	if err := s.ChooseAlternative(1); err != nil {
		t.Fatal(err)
	}

	items := s.Items()
	if items[0].ItemTypeID != "wardrobe-4d" || items[0].UnitPrice == nil || !items[0].UnitPrice.Equal(decimal.NewFromInt(310)) {
		t.Fatalf("item: %+v", items[0])
	}
	if s.State() != StateAllResolved || s.Progress().Completed != 1 {
		t.Fatalf("state=%s completed=%d", s.State(), s.Progress().Completed)
	}
}

func TestNoAlternativesSkipsStraightToCustom(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return internal.ResolveVariantResult{}, nil
	}}

	s := NewSession("ord-1", wardrobeParse(1), catalog, "en")
	if outcome := answerAndSubmit(t, s, "doors", "9"); outcome != OutcomeCustomNeeded {
		t.Fatalf("outcome=%s", outcome)
	}
	if s.State() != StateCustomNeeded {
		t.Fatalf("state=%s", s.State())
	}
}

func TestSkipKeepsEntryAndReturnsToIdle(t *testing.T) {
	catalog := &fakeCatalog{}
	s := NewSession("ord-1", wardrobeParse(1, 1), catalog, "en")

	before := s.Progress()
	s.Skip()
	if s.State() != StateIdle {
		t.Fatalf("state=%s", s.State())
	}
	after := s.Progress()
	if s.QueueLen() != 2 || after.Total != before.Total {
		t.Fatalf("skip must not shrink the queue: len=%d total=%d", s.QueueLen(), after.Total)
	}

	if err := s.Resume(1); err != nil {
		t.Fatal(err)
	}
	active, ok := s.Active()
	if !ok || active.ItemIndex != 1 {
		t.Fatalf("active=%+v ok=%v", active, ok)
	}
}

func TestTransientLookupErrorPreservesAnswers(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return internal.ResolveVariantResult{}, errors.New("gateway timeout")
	}}

	s := NewSession("ord-1", wardrobeParse(1), catalog, "en")
	if err := s.SetAnswer("doors", "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitAnswers(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.State() != StatePrompting || s.Answers()["doors"] != "2" || s.QueueLen() != 1 {
		t.Fatalf("retry state broken: state=%s answers=%v len=%d", s.State(), s.Answers(), s.QueueLen())
	}
	if len(s.Items()) != 1 {
		t.Fatal("item list must be untouched on lookup failure")
	}
}

func TestStaleResponseDropped(t *testing.T) {
	var s *Session
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		// User closes the prompt while the lookup is in flight.
		s.Skip()
		return foundVariant("wardrobe-2d", "Wardrobe, 2 doors"), nil
	}}

	s = NewSession("ord-1", wardrobeParse(1), catalog, "en")
	if err := s.SetAnswer("doors", "2"); err != nil {
		t.Fatal(err)
	}
	_, err := s.SubmitAnswers(context.Background())
	if !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("err=%v", err)
	}
	if s.QueueLen() != 1 || s.Items()[0].ItemTypeID != "wardrobe-generic" {
		t.Fatal("stale response must not be applied")
	}
}

func TestInstanceNumberingStable(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(_ string, answers map[string]string) (internal.ResolveVariantResult, error) {
		return foundVariant("wardrobe-"+answers["doors"]+"d", "Wardrobe"), nil
	}}

	s := NewSession("ord-1", wardrobeParse(1, 1, 1), catalog, "en")
	p := s.Progress()
	if p.TypeOrdinal != 1 || p.TypeCount != 3 {
		t.Fatalf("first: %d/%d", p.TypeOrdinal, p.TypeCount)
	}

	// Resolving the first sibling must not renumber the remaining two.
	answerAndSubmit(t, s, "doors", "2")
	p = s.Progress()
	if p.TypeOrdinal != 2 || p.TypeCount != 3 {
		t.Fatalf("second: %d/%d", p.TypeOrdinal, p.TypeCount)
	}

	answerAndSubmit(t, s, "doors", "3")
	p = s.Progress()
	if p.TypeOrdinal != 3 || p.TypeCount != 3 {
		t.Fatalf("third: %d/%d", p.TypeOrdinal, p.TypeCount)
	}
}

func TestNoConsolidationWhileQueueNonEmpty(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return foundVariant("wardrobe-2d", "Wardrobe, 2 doors"), nil
	}}

	// Two unrelated occurrences share an identity key; they must stay
	// separate until the last clarification resolves.
	result := wardrobeParse(1, 1)
	result.Items = append(result.Items,
		internal.ParsedItem{NameEn: "box", Quantity: 3, Confidence: 0.9},
		internal.ParsedItem{NameEn: "Box", Quantity: 2, Confidence: 0.4},
	)

	s := NewSession("ord-1", result, catalog, "en")
	if len(s.Items()) != 4 {
		t.Fatalf("premature consolidation at construction: %d", len(s.Items()))
	}

	answerAndSubmit(t, s, "doors", "2")
	if s.QueueLen() != 1 {
		t.Fatalf("len=%d", s.QueueLen())
	}
	if len(s.Items()) != 4 {
		t.Fatalf("premature consolidation after resolution: %d", len(s.Items()))
	}

	answerAndSubmit(t, s, "doors", "2")
	items := s.Items()
	if len(items) != 2 {
		t.Fatalf("final consolidation missing: %+v", items)
	}
	for _, it := range items {
		switch it.ItemTypeID {
		case "wardrobe-2d":
			if it.Quantity != 2 {
				t.Fatalf("wardrobe qty=%d", it.Quantity)
			}
		case "":
			if it.Quantity != 5 || it.Confidence != 0.9 {
				t.Fatalf("box group: %+v", it)
			}
		default:
			t.Fatalf("unexpected item %+v", it)
		}
	}
}

func TestQueueReindexAfterMergeRemoval(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return foundVariant("wardrobe-2d", "Wardrobe, 2 doors"), nil
	}}

	// Item 1 already carries the concrete variant; resolving item 0 merges
	// into it and removes item 0, so the pending entry for item 2 must shift
	// to index 1.
	result := internal.ParseResult{
		SeedID: "seed-1",
		Items: []internal.ParsedItem{
			genericWardrobe(1),
			{ItemTypeID: "wardrobe-2d", NameEn: "Wardrobe, 2 doors", Quantity: 1, Confidence: 1},
			genericWardrobe(1),
		},
		VariantClarifications: []internal.ClarificationEntry{wardrobeSeed(0), wardrobeSeed(2)},
	}

	s := NewSession("ord-1", result, catalog, "en")
	answerAndSubmit(t, s, "doors", "2")

	pending := s.Pending()
	if len(pending) != 1 || pending[0].ItemIndex != 1 {
		t.Fatalf("pending=%+v", pending)
	}

	answerAndSubmit(t, s, "doors", "2")
	items := s.Items()
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("items=%+v", items)
	}
}

func TestCustomItemSplice(t *testing.T) {
	catalog := &fakeCatalog{
		resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
			return internal.ResolveVariantResult{}, nil
		},
		create: func(draft internal.CustomItemDraft) (internal.ResolvedVariant, error) {
			return internal.ResolvedVariant{
				ID:        "custom-7",
				NameEn:    draft.NameEn,
				NameHe:    draft.NameHe,
				BasePrice: draft.EstimatedPrice,
			}, nil
		},
	}

	s := NewSession("ord-1", wardrobeParse(1), catalog, "en")
	answerAndSubmit(t, s, "doors", "9")
	if s.State() != StateCustomNeeded {
		t.Fatalf("state=%s", s.State())
	}

	draft := s.SeedCustomDraft()
	if draft.NameEn != "wardrobe" {
		t.Fatalf("draft not pre-seeded: %+v", draft)
	}
	draft.NameHe = "ארון מיוחד"
	draft.Category = "furniture"
	draft.EstimatedPrice = decimal.NewFromInt(400)

	if err := s.CreateCustomItem(context.Background(), draft); err != nil {
		t.Fatal(err)
	}

	items := s.Items()
	if len(items) != 1 || items[0].ItemTypeID != "custom-7" {
		t.Fatalf("items=%+v", items)
	}
	if items[0].UnitPrice == nil || !items[0].UnitPrice.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("price: %+v", items[0].UnitPrice)
	}
	if s.QueueLen() != 0 || s.State() != StateAllResolved || s.Progress().Completed != 1 {
		t.Fatalf("bookkeeping: len=%d state=%s completed=%d", s.QueueLen(), s.State(), s.Progress().Completed)
	}
}

func TestCustomItemValidation(t *testing.T) {
	catalog := &fakeCatalog{create: func(internal.CustomItemDraft) (internal.ResolvedVariant, error) {
		t.Fatal("invalid draft must not reach the catalog")
		return internal.ResolvedVariant{}, nil
	}}

	s := NewSession("ord-1", wardrobeParse(1), catalog, "en")
	err := s.CreateCustomItem(context.Background(), internal.CustomItemDraft{NameEn: "safe"})
	var validation *CustomItemValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err=%v", err)
	}
	if len(validation.Fields) != 2 {
		t.Fatalf("fields=%v", validation.Fields)
	}
	if len(s.Items()) != 1 || s.QueueLen() != 1 {
		t.Fatal("validation failure must not touch the item list or queue")
	}
}

func TestCustomItemFreeformAppends(t *testing.T) {
	catalog := &fakeCatalog{create: func(draft internal.CustomItemDraft) (internal.ResolvedVariant, error) {
		return internal.ResolvedVariant{ID: "custom-9", NameEn: draft.NameEn, BasePrice: draft.EstimatedPrice}, nil
	}}

	s := NewSession("ord-1", internal.ParseResult{
		SeedID: "seed-1",
		Items:  []internal.ParsedItem{{ItemTypeID: "sofa-3", NameEn: "Sofa", Quantity: 1, Confidence: 1}},
	}, catalog, "en")

	err := s.CreateCustomItem(context.Background(), internal.CustomItemDraft{
		NameEn: "Grandfather clock", NameHe: "שעון סבא", Category: "antiques",
		EstimatedPrice: decimal.NewFromInt(900),
	})
	if err != nil {
		t.Fatal(err)
	}

	items := s.Items()
	if len(items) != 2 || items[1].ItemTypeID != "custom-9" || items[1].Quantity != 1 {
		t.Fatalf("items=%+v", items)
	}
	if s.Progress().Completed != 0 {
		t.Fatal("freeform creation resolves no clarification")
	}
}

func TestRestartGuard(t *testing.T) {
	catalog := &fakeCatalog{}
	s := NewSession("ord-1", wardrobeParse(1, 1), catalog, "en")
	s.Skip()

	// Same seed id: re-delivery must not rebuild a live queue.
	s.Restart(wardrobeParse(1, 1))
	if s.State() != StateIdle || s.QueueLen() != 2 {
		t.Fatalf("guard failed: state=%s len=%d", s.State(), s.QueueLen())
	}

	fresh := wardrobeParse(1)
	fresh.SeedID = "seed-2"
	s.Restart(fresh)
	if s.QueueLen() != 1 || s.State() != StatePrompting || s.Progress().Total != 1 {
		t.Fatalf("restart failed: len=%d state=%s", s.QueueLen(), s.State())
	}
}

func TestSeedBeyondItemListDropped(t *testing.T) {
	catalog := &fakeCatalog{resolve: func(string, map[string]string) (internal.ResolveVariantResult, error) {
		return foundVariant("wardrobe-2d", "Wardrobe, 2 doors"), nil
	}}

	result := internal.ParseResult{
		SeedID:                "seed-1",
		Items:                 []internal.ParsedItem{genericWardrobe(1)},
		VariantClarifications: []internal.ClarificationEntry{wardrobeSeed(5), wardrobeSeed(0)},
	}

	s := NewSession("ord-1", result, catalog, "en")
	if s.QueueLen() != 1 || s.Progress().Total != 1 {
		t.Fatalf("dangling seed survived: len=%d total=%d", s.QueueLen(), s.Progress().Total)
	}
	if outcome := answerAndSubmit(t, s, "doors", "2"); outcome != OutcomeResolved {
		t.Fatalf("outcome=%s", outcome)
	}
	if s.State() != StateAllResolved {
		t.Fatalf("state=%s", s.State())
	}

	// Nothing but dangling seeds: the workflow has nothing to ask.
	empty := internal.ParseResult{
		SeedID:                "seed-2",
		Items:                 []internal.ParsedItem{genericWardrobe(1)},
		VariantClarifications: []internal.ClarificationEntry{wardrobeSeed(3)},
	}
	s2 := NewSession("ord-2", empty, catalog, "en")
	if s2.State() != StateAllResolved || s2.QueueLen() != 0 {
		t.Fatalf("state=%s len=%d", s2.State(), s2.QueueLen())
	}
}

type fakeOrders struct {
	failAt int
	calls  []internal.OrderItemPayload
}

func (f *fakeOrders) AddOrderItem(_ context.Context, orderID string, payload internal.OrderItemPayload) (internal.OrderItem, error) {
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return internal.OrderItem{}, errors.New("backend rejected item")
	}
	f.calls = append(f.calls, payload)
	return internal.OrderItem{ID: fmt.Sprintf("item-%d", len(f.calls)), OrderID: orderID, OrderItemPayload: payload}, nil
}

func TestFinalizeBlockedWhilePending(t *testing.T) {
	catalog := &fakeCatalog{}
	s := NewSession("ord-1", wardrobeParse(1), catalog, "en")

	_, err := s.Finalize(context.Background(), &fakeOrders{})
	if !errors.Is(err, ErrClarificationsPending) {
		t.Fatalf("err=%v", err)
	}
}

func TestSubmitAbortsOnFirstError(t *testing.T) {
	items := []internal.ParsedItem{
		item("a-1", "chair", 2, 1),
		item("b-2", "table", 1, 1),
		item("c-3", "lamp", 1, 1),
	}

	orders := &fakeOrders{failAt: 1}
	created, err := SubmitItems(context.Background(), orders, "ord-1", items)
	if err == nil {
		t.Fatal("expected error")
	}
	// Partial submission stands: the first item was created, the rest never sent.
	if len(created) != 1 || len(orders.calls) != 1 {
		t.Fatalf("created=%d calls=%d", len(created), len(orders.calls))
	}

	if _, err := SubmitItems(context.Background(), orders, "ord-1", nil); !errors.Is(err, ErrNoItems) {
		t.Fatalf("err=%v", err)
	}
}
