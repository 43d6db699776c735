package artifacts

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

type RiskLevel string

const (
	RiskVeryHigh RiskLevel = "VERY_HIGH"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// RiskLevelFor buckets a denial percentage.
func RiskLevelFor(pct float64) RiskLevel {
	switch {
	case pct >= 60:
		return RiskVeryHigh
	case pct >= 40:
		return RiskHigh
	case pct >= 20:
		return RiskMedium
	default:
		return RiskLow
	}
}

type OverallAssessment struct {
	DenialProbabilityPct float64   `json:"denial_probability_pct"`
	RiskLevel            RiskLevel `json:"risk_level"`
	Summary              string    `json:"summary"`
}

type CriterionRisk struct {
	Criterion criteria.ID `json:"criterion"`
	Risk      RiskLevel   `json:"risk"`
	Issues    []string    `json:"issues"`
}

type Adjustment struct {
	Factor string  `json:"factor"`
	Delta  float64 `json:"delta"`
}

// ProbabilityBreakdown is the quantitative pass. FinalDenialProbability is
// authoritative when present.
type ProbabilityBreakdown struct {
	BaseRate               float64      `json:"base_rate"`
	Adjustments            []Adjustment `json:"adjustments"`
	FinalDenialProbability *float64     `json:"final_denial_probability"`
	Methodology            string       `json:"methodology,omitempty"`
}

type DenialResult struct {
	OverallAssessment    OverallAssessment     `json:"overall_assessment"`
	CriterionRisks       []CriterionRisk       `json:"criterion_risks"`
	RfeTriggers          []string              `json:"rfe_triggers"`
	Recommendations      []string              `json:"recommendations"`
	ProbabilityBreakdown *ProbabilityBreakdown `json:"probability_breakdown,omitempty"`
}

// Reconcile makes the summary fields agree with the authoritative breakdown
// number, when there is one. The risk bucket is always re-derived from the
// percentage that ends up in the summary.
func (r *DenialResult) Reconcile() {
	if r.ProbabilityBreakdown != nil && r.ProbabilityBreakdown.FinalDenialProbability != nil {
		p := *r.ProbabilityBreakdown.FinalDenialProbability
		if !math.IsNaN(p) && !math.IsInf(p, 0) {
			r.OverallAssessment.DenialProbabilityPct = p
		}
	}
	r.OverallAssessment.RiskLevel = RiskLevelFor(r.OverallAssessment.DenialProbabilityPct)
}

type DenialProbability struct {
	ID        uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_denial_case_version,priority:1" json:"case_id"`
	Version   int                              `gorm:"column:version;not null;uniqueIndex:idx_denial_case_version,priority:2" json:"version"`
	Result    datatypes.JSONType[DenialResult] `gorm:"column:result" json:"result"`
	CreatedAt time.Time                        `gorm:"not null;index" json:"created_at"`
}

func (DenialProbability) TableName() string { return "denial_probability" }

func (d *DenialProbability) SetVersion(v int) { d.Version = v }
