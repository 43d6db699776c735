package artifacts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

type Bucket string

const (
	BucketPrimary  Bucket = "PRIMARY"
	BucketBackup   Bucket = "BACKUP"
	BucketExcluded Bucket = "EXCLUDED"
)

// KazarianThreshold is the number of criteria that must be met before the
// final-merits determination.
const KazarianThreshold = 3

type CriterionClassification struct {
	Criterion      criteria.ID       `json:"criterion"`
	Bucket         Bucket            `json:"bucket"`
	Strength       criteria.Strength `json:"strength"`
	BestScore      float64           `json:"best_score"`
	VerifiedClaims int               `json:"verified_claims"`
	DocumentIDs    []uuid.UUID       `json:"document_ids"`
	Promoted       bool              `json:"promoted,omitempty"`
	Rationale      string            `json:"rationale"`
}

type ConsolidationResult struct {
	Criteria      []CriterionClassification `json:"criteria"`
	PrimaryCount  int                       `json:"primary_count"`
	BackupCount   int                       `json:"backup_count"`
	ExcludedCount int                       `json:"excluded_count"`
	ThresholdMet  bool                      `json:"threshold_met"`
	Narrative     string                    `json:"narrative,omitempty"`
}

// Tally recomputes the bucket counts and threshold flag from Criteria.
func (r *ConsolidationResult) Tally() {
	r.PrimaryCount, r.BackupCount, r.ExcludedCount = 0, 0, 0
	for _, c := range r.Criteria {
		switch c.Bucket {
		case BucketPrimary:
			r.PrimaryCount++
		case BucketBackup:
			r.BackupCount++
		default:
			r.ExcludedCount++
		}
	}
	r.ThresholdMet = r.PrimaryCount >= KazarianThreshold
}

// CaseConsolidation versions are independent of analysis versions.
type CaseConsolidation struct {
	ID              uuid.UUID                               `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID          uuid.UUID                               `gorm:"type:uuid;not null;uniqueIndex:idx_consolidation_case_version,priority:1" json:"case_id"`
	Version         int                                     `gorm:"column:version;not null;uniqueIndex:idx_consolidation_case_version,priority:2" json:"version"`
	AnalysisVersion int                                     `gorm:"column:analysis_version;not null" json:"analysis_version"`
	Result          datatypes.JSONType[ConsolidationResult] `gorm:"column:result" json:"result"`
	CreatedAt       time.Time                               `gorm:"not null;index" json:"created_at"`
}

func (CaseConsolidation) TableName() string { return "case_consolidation" }

func (c *CaseConsolidation) SetVersion(v int) { c.Version = v }
