package evidence

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

// PassScore is the minimum verification score for auto-routing.
const PassScore = 5.0

// Passes reports whether a verification qualifies its document for the
// criterion.
func Passes(score float64, rec Recommendation) bool {
	return score >= PassScore && rec.Routable()
}

// DocumentCriterionRouting associates a document with a criterion it
// substantiates. There is at most one row per (document, criterion); rows are
// written by upsert only.
type DocumentCriterionRouting struct {
	ID             uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID         uuid.UUID                    `gorm:"type:uuid;not null;index" json:"case_id"`
	DocumentID     uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex:idx_routing_doc_criterion,priority:1" json:"document_id"`
	Criterion      criteria.ID                  `gorm:"column:criterion;not null;uniqueIndex:idx_routing_doc_criterion,priority:2" json:"criterion"`
	Score          float64                      `gorm:"column:score;not null" json:"score"`
	Recommendation Recommendation               `gorm:"column:recommendation;not null" json:"recommendation"`
	AutoRouted     bool                         `gorm:"column:auto_routed;not null;index" json:"auto_routed"`
	MatchedItemIDs datatypes.JSONType[[]string] `gorm:"column:matched_item_ids" json:"matched_item_ids"`
	CreatedAt      time.Time                    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                    `gorm:"not null" json:"updated_at"`
}

func (DocumentCriterionRouting) TableName() string { return "document_criterion_routing" }
