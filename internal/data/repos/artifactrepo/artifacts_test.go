package artifactrepo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/artifacts"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

func TestArtifactVersionCountersAreIndependent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	log := testutil.Logger(t)
	caseID := uuid.New()

	gaps := NewGapAnalysisRepo(db, log)
	denials := NewDenialProbabilityRepo(db, log)
	consolidations := NewConsolidationRepo(db, log)

	for i := 0; i < 2; i++ {
		if _, err := gaps.Append(dbc, &artifacts.GapAnalysis{CaseID: caseID, AnalysisVersion: 4, Result: datatypes.NewJSONType(artifacts.GapResult{Summary: "s"})}); err != nil {
			t.Fatalf("gap Append: %v", err)
		}
	}
	final := 45.0
	d, err := denials.Append(dbc, &artifacts.DenialProbability{CaseID: caseID, Result: datatypes.NewJSONType(artifacts.DenialResult{
		OverallAssessment:    artifacts.OverallAssessment{DenialProbabilityPct: 45, RiskLevel: artifacts.RiskHigh},
		ProbabilityBreakdown: &artifacts.ProbabilityBreakdown{FinalDenialProbability: &final},
	})})
	if err != nil || d.Version != 1 {
		t.Fatalf("denial Append: %v %+v", err, d)
	}
	c, err := consolidations.Append(dbc, &artifacts.CaseConsolidation{CaseID: caseID, AnalysisVersion: 4})
	if err != nil || c.Version != 1 {
		t.Fatalf("consolidation Append: %v %+v", err, c)
	}

	latestGap, err := gaps.Latest(dbc, caseID)
	if err != nil || latestGap == nil || latestGap.Version != 2 {
		t.Fatalf("gap Latest: %v %+v", err, latestGap)
	}
	latestDenial, err := denials.Latest(dbc, caseID)
	if err != nil || latestDenial == nil {
		t.Fatalf("denial Latest: %v", err)
	}
	if latestDenial.Result.Data().OverallAssessment.RiskLevel != artifacts.RiskHigh {
		t.Fatalf("denial payload not round-tripped: %+v", latestDenial.Result.Data())
	}
	if h, err := consolidations.History(dbc, caseID); err != nil || len(h) != 1 {
		t.Fatalf("consolidation History: %v len=%d", err, len(h))
	}
	if h, err := gaps.History(dbc, caseID); err != nil || len(h) != 2 {
		t.Fatalf("gap History: %v len=%d", err, len(h))
	}
}
