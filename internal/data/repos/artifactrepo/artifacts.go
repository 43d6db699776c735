package artifactrepo

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/versioning"
	"github.com/yungbote/caseforge-backend/internal/domain/artifacts"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

func caseScope(caseID uuid.UUID) versioning.Scope { return versioning.Scope{"case_id": caseID} }

type GapAnalysisRepo interface {
	Append(dbc dbctx.Context, g *artifacts.GapAnalysis) (*artifacts.GapAnalysis, error)
	Latest(dbc dbctx.Context, caseID uuid.UUID) (*artifacts.GapAnalysis, error)
	History(dbc dbctx.Context, caseID uuid.UUID) ([]artifacts.GapAnalysis, error)
}

type gapAnalysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGapAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) GapAnalysisRepo {
	return &gapAnalysisRepo{db: db, log: baseLog.With("repo", "GapAnalysisRepo")}
}

func (r *gapAnalysisRepo) Append(dbc dbctx.Context, g *artifacts.GapAnalysis) (*artifacts.GapAnalysis, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if _, err := versioning.Append(dbc, r.db, g, caseScope(g.CaseID)); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *gapAnalysisRepo) Latest(dbc dbctx.Context, caseID uuid.UUID) (*artifacts.GapAnalysis, error) {
	return versioning.Latest[artifacts.GapAnalysis](dbc, r.db, caseScope(caseID))
}

func (r *gapAnalysisRepo) History(dbc dbctx.Context, caseID uuid.UUID) ([]artifacts.GapAnalysis, error) {
	return versioning.History[artifacts.GapAnalysis](dbc, r.db, caseScope(caseID))
}

type DenialProbabilityRepo interface {
	Append(dbc dbctx.Context, d *artifacts.DenialProbability) (*artifacts.DenialProbability, error)
	Latest(dbc dbctx.Context, caseID uuid.UUID) (*artifacts.DenialProbability, error)
	History(dbc dbctx.Context, caseID uuid.UUID) ([]artifacts.DenialProbability, error)
}

type denialProbabilityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDenialProbabilityRepo(db *gorm.DB, baseLog *logger.Logger) DenialProbabilityRepo {
	return &denialProbabilityRepo{db: db, log: baseLog.With("repo", "DenialProbabilityRepo")}
}

func (r *denialProbabilityRepo) Append(dbc dbctx.Context, d *artifacts.DenialProbability) (*artifacts.DenialProbability, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if _, err := versioning.Append(dbc, r.db, d, caseScope(d.CaseID)); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *denialProbabilityRepo) Latest(dbc dbctx.Context, caseID uuid.UUID) (*artifacts.DenialProbability, error) {
	return versioning.Latest[artifacts.DenialProbability](dbc, r.db, caseScope(caseID))
}

func (r *denialProbabilityRepo) History(dbc dbctx.Context, caseID uuid.UUID) ([]artifacts.DenialProbability, error) {
	return versioning.History[artifacts.DenialProbability](dbc, r.db, caseScope(caseID))
}

type ConsolidationRepo interface {
	Append(dbc dbctx.Context, c *artifacts.CaseConsolidation) (*artifacts.CaseConsolidation, error)
	Latest(dbc dbctx.Context, caseID uuid.UUID) (*artifacts.CaseConsolidation, error)
	History(dbc dbctx.Context, caseID uuid.UUID) ([]artifacts.CaseConsolidation, error)
}

type consolidationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsolidationRepo(db *gorm.DB, baseLog *logger.Logger) ConsolidationRepo {
	return &consolidationRepo{db: db, log: baseLog.With("repo", "ConsolidationRepo")}
}

func (r *consolidationRepo) Append(dbc dbctx.Context, c *artifacts.CaseConsolidation) (*artifacts.CaseConsolidation, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, err := versioning.Append(dbc, r.db, c, caseScope(c.CaseID)); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *consolidationRepo) Latest(dbc dbctx.Context, caseID uuid.UUID) (*artifacts.CaseConsolidation, error) {
	return versioning.Latest[artifacts.CaseConsolidation](dbc, r.db, caseScope(caseID))
}

func (r *consolidationRepo) History(dbc dbctx.Context, caseID uuid.UUID) ([]artifacts.CaseConsolidation, error) {
	return versioning.History[artifacts.CaseConsolidation](dbc, r.db, caseScope(caseID))
}
