package domain

import (
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/artifacts"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
)

type (
	Case                     = cases.Case
	CaseProfile              = cases.CaseProfile
	Analysis                 = analysis.Analysis
	Document                 = documents.Document
	EvidenceVerification     = evidence.EvidenceVerification
	DocumentCriterionRouting = evidence.DocumentCriterionRouting
	GapAnalysis              = artifacts.GapAnalysis
	DenialProbability        = artifacts.DenialProbability
	CaseConsolidation        = artifacts.CaseConsolidation
)

// Models lists every persisted model, in migration order.
func Models() []any {
	return []any{
		&cases.Case{},
		&cases.CaseProfile{},
		&analysis.Analysis{},
		&documents.Document{},
		&evidence.EvidenceVerification{},
		&evidence.DocumentCriterionRouting{},
		&artifacts.GapAnalysis{},
		&artifacts.DenialProbability{},
		&artifacts.CaseConsolidation{},
	}
}
