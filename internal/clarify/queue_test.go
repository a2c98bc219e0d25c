package clarify

import (
	"testing"

	"movedesk/internal"
)

func seedEntry(idx int, typeID string) internal.ClarificationEntry {
	return internal.ClarificationEntry{ItemIndex: idx, ItemTypeID: typeID, NameEn: typeID}
}

func TestBuildQueueGroupsByType(t *testing.T) {
	// Raw order interleaves types A and B; the queue must visit all of one
	// type consecutively, original relative order preserved within a type.
	seeds := []internal.ClarificationEntry{
		seedEntry(0, "type-a"),
		seedEntry(1, "type-b"),
		seedEntry(2, "type-a"),
	}

	queue := buildQueue(seeds)
	if len(queue) != 3 {
		t.Fatalf("len=%d", len(queue))
	}
	if queue[0].ItemTypeID != "type-a" || queue[1].ItemTypeID != "type-a" || queue[2].ItemTypeID != "type-b" {
		t.Fatalf("not grouped: %v %v %v", queue[0].ItemTypeID, queue[1].ItemTypeID, queue[2].ItemTypeID)
	}
	if queue[0].ItemIndex != 0 || queue[1].ItemIndex != 2 {
		t.Fatalf("within-type order broken: %d %d", queue[0].ItemIndex, queue[1].ItemIndex)
	}
}

func TestBuildQueueCollapsesDuplicateItemIndex(t *testing.T) {
	seeds := []internal.ClarificationEntry{
		seedEntry(0, "type-a"),
		seedEntry(0, "type-a"),
	}
	queue := buildQueue(seeds)
	if len(queue) != 1 {
		t.Fatalf("at most one entry per item index, got %d", len(queue))
	}
}

func TestBuildQueueOrdinalsAreStable(t *testing.T) {
	seeds := []internal.ClarificationEntry{
		seedEntry(3, "type-b"),
		seedEntry(1, "type-a"),
		seedEntry(2, "type-a"),
	}
	queue := buildQueue(seeds)
	for i, e := range queue {
		if e.ord != i {
			t.Fatalf("ord %d at position %d", e.ord, i)
		}
	}
}
