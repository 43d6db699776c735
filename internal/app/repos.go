package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type Repos struct {
	Case          repos.CaseRepo
	CaseProfile   repos.CaseProfileRepo
	Analysis      repos.AnalysisRepo
	Document      repos.DocumentRepo
	Verification  repos.VerificationRepo
	Routing       repos.RoutingRepo
	GapAnalysis   repos.GapAnalysisRepo
	Denial        repos.DenialProbabilityRepo
	Consolidation repos.ConsolidationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Case:          repos.NewCaseRepo(db, log),
		CaseProfile:   repos.NewCaseProfileRepo(db, log),
		Analysis:      repos.NewAnalysisRepo(db, log),
		Document:      repos.NewDocumentRepo(db, log),
		Verification:  repos.NewVerificationRepo(db, log),
		Routing:       repos.NewRoutingRepo(db, log),
		GapAnalysis:   repos.NewGapAnalysisRepo(db, log),
		Denial:        repos.NewDenialProbabilityRepo(db, log),
		Consolidation: repos.NewConsolidationRepo(db, log),
	}
}
