package artifacts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

type CoverageStatus string

const (
	CoverageMet     CoverageStatus = "MET"
	CoveragePartial CoverageStatus = "PARTIAL"
	CoverageMissing CoverageStatus = "MISSING"
)

type CriterionGap struct {
	Criterion       criteria.ID       `json:"criterion"`
	Strength        criteria.Strength `json:"strength"`
	Status          CoverageStatus    `json:"status"`
	RoutedDocuments int               `json:"routed_documents"`
	Gaps            []string          `json:"gaps"`
	Recommendations []string          `json:"recommendations"`
}

type GapResult struct {
	Summary         string         `json:"summary"`
	Criteria        []CriterionGap `json:"criteria"`
	PriorityActions []string       `json:"priority_actions"`
}

type GapAnalysis struct {
	ID              uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID          uuid.UUID                     `gorm:"type:uuid;not null;uniqueIndex:idx_gap_case_version,priority:1" json:"case_id"`
	Version         int                           `gorm:"column:version;not null;uniqueIndex:idx_gap_case_version,priority:2" json:"version"`
	AnalysisVersion int                           `gorm:"column:analysis_version;not null" json:"analysis_version"`
	Result          datatypes.JSONType[GapResult] `gorm:"column:result" json:"result"`
	CreatedAt       time.Time                     `gorm:"not null;index" json:"created_at"`
}

func (GapAnalysis) TableName() string { return "gap_analysis" }

func (g *GapAnalysis) SetVersion(v int) { g.Version = v }
