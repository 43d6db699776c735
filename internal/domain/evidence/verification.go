package evidence

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

type Recommendation string

const (
	RecommendationStrong             Recommendation = "STRONG"
	RecommendationIncludeWithSupport Recommendation = "INCLUDE_WITH_SUPPORT"
	RecommendationWeak               Recommendation = "WEAK"
	RecommendationInsufficient       Recommendation = "INSUFFICIENT"
	RecommendationExclude            Recommendation = "EXCLUDE"
	RecommendationManual             Recommendation = "MANUAL"
)

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendationStrong, RecommendationIncludeWithSupport, RecommendationWeak,
		RecommendationInsufficient, RecommendationExclude, RecommendationManual:
		return true
	}
	return false
}

// Routable reports whether a verification with this recommendation may be
// auto-routed.
func (r Recommendation) Routable() bool {
	return r == RecommendationStrong || r == RecommendationIncludeWithSupport
}

type VerificationPayload struct {
	Summary        string   `json:"summary"`
	VerifiedClaims []string `json:"verified_claims"`
	RedFlags       []string `json:"red_flags"`
	MatchedItemIDs []string `json:"matched_item_ids"`
}

// EvidenceVerification is one scored judgment of a document against a
// criterion. Versions are scoped to (case, document, criterion).
type EvidenceVerification struct {
	ID             uuid.UUID                               `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID         uuid.UUID                               `gorm:"type:uuid;not null;uniqueIndex:idx_ev_scope_version,priority:1" json:"case_id"`
	DocumentID     uuid.UUID                               `gorm:"type:uuid;not null;index;uniqueIndex:idx_ev_scope_version,priority:2" json:"document_id"`
	Criterion      criteria.ID                             `gorm:"column:criterion;not null;uniqueIndex:idx_ev_scope_version,priority:3" json:"criterion"`
	Version        int                                     `gorm:"column:version;not null;uniqueIndex:idx_ev_scope_version,priority:4" json:"version"`
	Score          float64                                 `gorm:"column:score;not null" json:"score"`
	Recommendation Recommendation                          `gorm:"column:recommendation;not null" json:"recommendation"`
	Payload        datatypes.JSONType[VerificationPayload] `gorm:"column:payload" json:"payload"`
	CreatedAt      time.Time                               `gorm:"not null;index" json:"created_at"`
}

func (EvidenceVerification) TableName() string { return "evidence_verification" }

func (v *EvidenceVerification) SetVersion(n int) { v.Version = n }

// LatestPerCriterion keeps the first row seen for each criterion. rows must
// be ordered by version descending.
func LatestPerCriterion(rows []EvidenceVerification) map[criteria.ID]EvidenceVerification {
	out := make(map[criteria.ID]EvidenceVerification, criteria.Count)
	for _, r := range rows {
		if _, seen := out[r.Criterion]; seen {
			continue
		}
		out[r.Criterion] = r
	}
	return out
}
