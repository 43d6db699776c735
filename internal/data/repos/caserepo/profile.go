package caserepo

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type CaseProfileRepo interface {
	GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) (*cases.CaseProfile, error)
	Save(dbc dbctx.Context, p *cases.CaseProfile) error
}

type caseProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseProfileRepo(db *gorm.DB, baseLog *logger.Logger) CaseProfileRepo {
	return &caseProfileRepo{
		db:  db,
		log: baseLog.With("repo", "CaseProfileRepo"),
	}
}

func (r *caseProfileRepo) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) (*cases.CaseProfile, error) {
	var rows []cases.CaseProfile
	if err := dbc.DB(r.db).Where("case_id = ?", caseID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *caseProfileRepo) Save(dbc dbctx.Context, p *cases.CaseProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return dbc.DB(r.db).Save(p).Error
}
