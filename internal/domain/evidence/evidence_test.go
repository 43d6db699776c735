package evidence

import (
	"testing"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

func TestPasses(t *testing.T) {
	cases := []struct {
		score float64
		rec   Recommendation
		want  bool
	}{
		{5.0, RecommendationStrong, true},
		{9.1, RecommendationIncludeWithSupport, true},
		{4.99, RecommendationStrong, false},
		{8.0, RecommendationWeak, false},
		{10, RecommendationManual, false},
	}
	for _, c := range cases {
		if got := Passes(c.score, c.rec); got != c.want {
			t.Fatalf("Passes(%v,%s): expected %v got %v", c.score, c.rec, c.want, got)
		}
	}
}

func TestLatestPerCriterionFirstSeenWins(t *testing.T) {
	rows := []EvidenceVerification{
		{Criterion: criteria.C3, Version: 3, Score: 7},
		{Criterion: criteria.C6, Version: 2, Score: 4},
		{Criterion: criteria.C3, Version: 2, Score: 1},
		{Criterion: criteria.C3, Version: 1, Score: 2},
	}
	got := LatestPerCriterion(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(got))
	}
	if got[criteria.C3].Version != 3 || got[criteria.C3].Score != 7 {
		t.Fatalf("expected C3 v3, got %+v", got[criteria.C3])
	}
}
