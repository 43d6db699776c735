package evidencerepo

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/versioning"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type VerificationRepo interface {
	Append(dbc dbctx.Context, v *evidence.EvidenceVerification) (*evidence.EvidenceVerification, error)
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]evidence.EvidenceVerification, error)
	LatestByDocument(dbc dbctx.Context, documentID uuid.UUID) (map[criteria.ID]evidence.EvidenceVerification, error)
	LatestByCase(dbc dbctx.Context, caseID uuid.UUID) (map[uuid.UUID]map[criteria.ID]evidence.EvidenceVerification, error)
}

type verificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVerificationRepo(db *gorm.DB, baseLog *logger.Logger) VerificationRepo {
	return &verificationRepo{
		db:  db,
		log: baseLog.With("repo", "VerificationRepo"),
	}
}

func (r *verificationRepo) Append(dbc dbctx.Context, v *evidence.EvidenceVerification) (*evidence.EvidenceVerification, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	scope := versioning.Scope{
		"case_id":     v.CaseID,
		"document_id": v.DocumentID,
		"criterion":   v.Criterion,
	}
	if _, err := versioning.Append(dbc, r.db, v, scope); err != nil {
		return nil, err
	}
	return v, nil
}

// ListByDocument returns every verification for the document, newest version first.
func (r *verificationRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]evidence.EvidenceVerification, error) {
	var out []evidence.EvidenceVerification
	if err := dbc.DB(r.db).
		Where("document_id = ?", documentID).
		Order("version DESC").
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *verificationRepo) LatestByDocument(dbc dbctx.Context, documentID uuid.UUID) (map[criteria.ID]evidence.EvidenceVerification, error) {
	rows, err := r.ListByDocument(dbc, documentID)
	if err != nil {
		return nil, err
	}
	return evidence.LatestPerCriterion(rows), nil
}

func (r *verificationRepo) LatestByCase(dbc dbctx.Context, caseID uuid.UUID) (map[uuid.UUID]map[criteria.ID]evidence.EvidenceVerification, error) {
	var rows []evidence.EvidenceVerification
	if err := dbc.DB(r.db).
		Where("case_id = ?", caseID).
		Order("version DESC").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byDoc := map[uuid.UUID][]evidence.EvidenceVerification{}
	for _, row := range rows {
		byDoc[row.DocumentID] = append(byDoc[row.DocumentID], row)
	}
	out := make(map[uuid.UUID]map[criteria.ID]evidence.EvidenceVerification, len(byDoc))
	for docID, docRows := range byDoc {
		out[docID] = evidence.LatestPerCriterion(docRows)
	}
	return out, nil
}
