package analysis

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

// CriterionResult is one entry of the ten-element verdict array.
type CriterionResult struct {
	Criterion   criteria.ID       `json:"criterion"`
	Strength    criteria.Strength `json:"strength"`
	Reason      string            `json:"reason"`
	Evidence    []string          `json:"evidence"`
	KeyEvidence []string          `json:"key_evidence"`
	UserContext []string          `json:"user_context,omitempty"`
	EvaluatedAt *time.Time        `json:"evaluated_at,omitempty"`
}

// Analysis is one immutable version of a case's extraction and verdicts.
type Analysis struct {
	ID          uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID      uuid.UUID                             `gorm:"type:uuid;not null;uniqueIndex:idx_analysis_case_version,priority:1" json:"case_id"`
	Version     int                                   `gorm:"column:version;not null;uniqueIndex:idx_analysis_case_version,priority:2" json:"version"`
	Extraction  datatypes.JSONType[Extraction]        `gorm:"column:extraction" json:"extraction"`
	Criteria    datatypes.JSONType[[]CriterionResult] `gorm:"column:criteria" json:"criteria"`
	StrongCount int                                   `gorm:"column:strong_count;not null" json:"strong_count"`
	WeakCount   int                                   `gorm:"column:weak_count;not null" json:"weak_count"`
	CreatedAt   time.Time                             `gorm:"not null;index" json:"created_at"`
}

func (Analysis) TableName() string { return "analysis" }

func (a *Analysis) SetVersion(v int) { a.Version = v }

// BeforeSave keeps the aggregate counts derived from the verdict array.
func (a *Analysis) BeforeSave(tx *gorm.DB) error {
	a.Recount()
	return nil
}

func (a *Analysis) Recount() {
	a.StrongCount, a.WeakCount = CountStrengths(a.Criteria.Data())
}

func CountStrengths(results []CriterionResult) (strong, weak int) {
	for _, r := range results {
		switch r.Strength {
		case criteria.StrengthStrong:
			strong++
		case criteria.StrengthWeak:
			weak++
		}
	}
	return strong, weak
}

// EmptyResults returns the ten-element array with every criterion at None.
func EmptyResults() []CriterionResult {
	ids := criteria.IDs()
	out := make([]CriterionResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, CriterionResult{Criterion: id, Strength: criteria.StrengthNone, Evidence: []string{}, KeyEvidence: []string{}})
	}
	return out
}

// NormalizeResults returns exactly ten entries in C1..C10 order, filling
// gaps with None and dropping unknown or duplicate criteria.
func NormalizeResults(in []CriterionResult) []CriterionResult {
	byID := make(map[criteria.ID]CriterionResult, len(in))
	for _, r := range in {
		if !r.Criterion.Valid() {
			continue
		}
		if _, dup := byID[r.Criterion]; dup {
			continue
		}
		byID[r.Criterion] = r
	}
	out := EmptyResults()
	for i := range out {
		if r, ok := byID[out[i].Criterion]; ok {
			if r.Evidence == nil {
				r.Evidence = []string{}
			}
			if r.KeyEvidence == nil {
				r.KeyEvidence = []string{}
			}
			out[i] = r
		}
	}
	return out
}

// ReplaceResult returns a copy of results with the entry for r.Criterion
// replaced by r.
func ReplaceResult(results []CriterionResult, r CriterionResult) []CriterionResult {
	out := NormalizeResults(results)
	for i := range out {
		if out[i].Criterion == r.Criterion {
			out[i] = r
		}
	}
	return NormalizeResults(out)
}

func FindResult(results []CriterionResult, id criteria.ID) (CriterionResult, bool) {
	for _, r := range results {
		if r.Criterion == id {
			return r, true
		}
	}
	return CriterionResult{}, false
}
