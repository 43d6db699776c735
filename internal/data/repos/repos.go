package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos/analysisrepo"
	"github.com/yungbote/caseforge-backend/internal/data/repos/artifactrepo"
	"github.com/yungbote/caseforge-backend/internal/data/repos/caserepo"
	"github.com/yungbote/caseforge-backend/internal/data/repos/documentrepo"
	"github.com/yungbote/caseforge-backend/internal/data/repos/evidencerepo"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type CaseRepo = caserepo.CaseRepo
type CaseProfileRepo = caserepo.CaseProfileRepo

type AnalysisRepo = analysisrepo.AnalysisRepo

type DocumentRepo = documentrepo.DocumentRepo

type VerificationRepo = evidencerepo.VerificationRepo
type RoutingRepo = evidencerepo.RoutingRepo

type GapAnalysisRepo = artifactrepo.GapAnalysisRepo
type DenialProbabilityRepo = artifactrepo.DenialProbabilityRepo
type ConsolidationRepo = artifactrepo.ConsolidationRepo

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo { return caserepo.NewCaseRepo(db, baseLog) }
func NewCaseProfileRepo(db *gorm.DB, baseLog *logger.Logger) CaseProfileRepo {
	return caserepo.NewCaseProfileRepo(db, baseLog)
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return analysisrepo.NewAnalysisRepo(db, baseLog)
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return documentrepo.NewDocumentRepo(db, baseLog)
}

func NewVerificationRepo(db *gorm.DB, baseLog *logger.Logger) VerificationRepo {
	return evidencerepo.NewVerificationRepo(db, baseLog)
}
func NewRoutingRepo(db *gorm.DB, baseLog *logger.Logger) RoutingRepo {
	return evidencerepo.NewRoutingRepo(db, baseLog)
}

func NewGapAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) GapAnalysisRepo {
	return artifactrepo.NewGapAnalysisRepo(db, baseLog)
}
func NewDenialProbabilityRepo(db *gorm.DB, baseLog *logger.Logger) DenialProbabilityRepo {
	return artifactrepo.NewDenialProbabilityRepo(db, baseLog)
}
func NewConsolidationRepo(db *gorm.DB, baseLog *logger.Logger) ConsolidationRepo {
	return artifactrepo.NewConsolidationRepo(db, baseLog)
}
