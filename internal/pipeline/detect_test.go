package pipeline

import "testing"

func TestDetectMoveRequestPositive(t *testing.T) {
	res := DetectMoveRequest(
		"Moving quote request",
		"we are moving to a new apartment, 2 wardrobes, 1 sofa, 6 chairs",
		"", nil)
	if !res.IsMoveRequest {
		t.Fatalf("score=%f", res.Score)
	}
}

func TestDetectMoveRequestHebrew(t *testing.T) {
	res := DetectMoveRequest("הצעת מחיר הובלה", "מעבר דירה בחודש הבא, 3 ארונות 2 מיטות", "", nil)
	if !res.IsMoveRequest {
		t.Fatalf("score=%f", res.Score)
	}
}

func TestDetectMoveRequestNegative(t *testing.T) {
	res := DetectMoveRequest("Lunch on Friday?", "are you free around noon", "", nil)
	if res.IsMoveRequest {
		t.Fatalf("score=%f", res.Score)
	}
}

func TestDetectAttachmentBoost(t *testing.T) {
	base := DetectMoveRequest("inventory", "see attached", "", nil)
	boosted := DetectMoveRequest("inventory", "see attached", "", []string{"inventory.xlsx"})
	if boosted.Score <= base.Score {
		t.Fatalf("base=%f boosted=%f", base.Score, boosted.Score)
	}
}
