package analysisrepo

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/versioning"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type AnalysisRepo interface {
	Append(dbc dbctx.Context, a *analysis.Analysis) (*analysis.Analysis, error)
	Latest(dbc dbctx.Context, caseID uuid.UUID) (*analysis.Analysis, error)
	History(dbc dbctx.Context, caseID uuid.UUID) ([]analysis.Analysis, error)
	GetVersion(dbc dbctx.Context, caseID uuid.UUID, version int) (*analysis.Analysis, error)
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{
		db:  db,
		log: baseLog.With("repo", "AnalysisRepo"),
	}
}

func scope(caseID uuid.UUID) versioning.Scope { return versioning.Scope{"case_id": caseID} }

func (r *analysisRepo) Append(dbc dbctx.Context, a *analysis.Analysis) (*analysis.Analysis, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, err := versioning.Append(dbc, r.db, a, scope(a.CaseID)); err != nil {
		return nil, err
	}
	r.log.Debug("Analysis version appended", "case_id", a.CaseID, "version", a.Version, "strong", a.StrongCount, "weak", a.WeakCount)
	return a, nil
}

func (r *analysisRepo) Latest(dbc dbctx.Context, caseID uuid.UUID) (*analysis.Analysis, error) {
	return versioning.Latest[analysis.Analysis](dbc, r.db, scope(caseID))
}

func (r *analysisRepo) History(dbc dbctx.Context, caseID uuid.UUID) ([]analysis.Analysis, error) {
	return versioning.History[analysis.Analysis](dbc, r.db, scope(caseID))
}

func (r *analysisRepo) GetVersion(dbc dbctx.Context, caseID uuid.UUID, version int) (*analysis.Analysis, error) {
	var rows []analysis.Analysis
	if err := dbc.DB(r.db).
		Where("case_id = ? AND version = ?", caseID, version).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
