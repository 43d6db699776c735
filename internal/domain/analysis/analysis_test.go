package analysis

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

func TestBeforeSaveRecountsFromArray(t *testing.T) {
	results := EmptyResults()
	results[0].Strength = criteria.StrengthStrong
	results[2].Strength = criteria.StrengthStrong
	results[5].Strength = criteria.StrengthWeak

	a := &Analysis{StrongCount: 9, WeakCount: 9, Criteria: datatypes.NewJSONType(results)}
	if err := a.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if a.StrongCount != 2 || a.WeakCount != 1 {
		t.Fatalf("expected 2 strong / 1 weak, got %d / %d", a.StrongCount, a.WeakCount)
	}
}

func TestNormalizeResultsAlwaysTen(t *testing.T) {
	out := NormalizeResults([]CriterionResult{
		{Criterion: criteria.C4, Strength: criteria.StrengthWeak},
		{Criterion: criteria.C4, Strength: criteria.StrengthStrong},
		{Criterion: "C99", Strength: criteria.StrengthStrong},
	})
	if len(out) != criteria.Count {
		t.Fatalf("expected %d results, got %d", criteria.Count, len(out))
	}
	if out[3].Criterion != criteria.C4 || out[3].Strength != criteria.StrengthWeak {
		t.Fatalf("expected first C4 entry to win, got %+v", out[3])
	}
	if out[0].Evidence == nil {
		t.Fatalf("expected non-nil evidence slices")
	}
}

func TestReplaceResult(t *testing.T) {
	out := ReplaceResult(EmptyResults(), CriterionResult{Criterion: criteria.C9, Strength: criteria.StrengthStrong, Reason: "top 5%"})
	r, ok := FindResult(out, criteria.C9)
	if !ok || r.Strength != criteria.StrengthStrong || r.Reason != "top 5%" {
		t.Fatalf("unexpected C9 result: %+v", r)
	}
	strong, weak := CountStrengths(out)
	if strong != 1 || weak != 0 {
		t.Fatalf("expected 1/0, got %d/%d", strong, weak)
	}
}

func TestItemsFor(t *testing.T) {
	e := Extraction{
		Patents: []EvidenceItem{{Title: "Widget", MappedCriteria: []criteria.ID{criteria.C5}}},
		Awards:  []EvidenceItem{{Title: "Medal", MappedCriteria: []criteria.ID{criteria.C1, criteria.C5}}},
	}
	got := e.ItemsFor(criteria.C5)
	if len(got) != 2 {
		t.Fatalf("expected 2 items for C5, got %d", len(got))
	}
	if e.Category("bogus") != nil {
		t.Fatalf("expected nil for unknown category")
	}
}
