package evidencerepo

import (
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type RoutingRepo interface {
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]evidence.DocumentCriterionRouting, error)
	ListByCase(dbc dbctx.Context, caseID uuid.UUID) ([]evidence.DocumentCriterionRouting, error)
	Get(dbc dbctx.Context, documentID uuid.UUID, c criteria.ID) (*evidence.DocumentCriterionRouting, error)
	UpsertScored(dbc dbctx.Context, row *evidence.DocumentCriterionRouting) error
	UpsertManual(dbc dbctx.Context, row *evidence.DocumentCriterionRouting) error
	DeleteStaleAuto(dbc dbctx.Context, documentID uuid.UUID, passing []criteria.ID) (int64, error)
	Delete(dbc dbctx.Context, documentID uuid.UUID, c criteria.ID) (int64, error)
}

type routingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoutingRepo(db *gorm.DB, baseLog *logger.Logger) RoutingRepo {
	return &routingRepo{
		db:  db,
		log: baseLog.With("repo", "RoutingRepo"),
	}
}

var routingKey = []clause.Column{{Name: "document_id"}, {Name: "criterion"}}

func (r *routingRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID) ([]evidence.DocumentCriterionRouting, error) {
	var out []evidence.DocumentCriterionRouting
	if err := dbc.DB(r.db).
		Where("document_id = ?", documentID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	sortRoutes(out)
	return out, nil
}

func (r *routingRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID) ([]evidence.DocumentCriterionRouting, error) {
	var out []evidence.DocumentCriterionRouting
	if err := dbc.DB(r.db).
		Where("case_id = ?", caseID).
		Order("score DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	sortRoutes(out)
	return out, nil
}

// sortRoutes orders rows by criterion number (C2 before C10), keeping the
// query order within a criterion.
func sortRoutes(rows []evidence.DocumentCriterionRouting) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Criterion.Ordinal() < rows[j].Criterion.Ordinal()
	})
}

func (r *routingRepo) Get(dbc dbctx.Context, documentID uuid.UUID, c criteria.ID) (*evidence.DocumentCriterionRouting, error) {
	var rows []evidence.DocumentCriterionRouting
	if err := dbc.DB(r.db).
		Where("document_id = ? AND criterion = ?", documentID, c).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpsertScored creates the row with row.AutoRouted, or refreshes the score
// fields of an existing row. auto_routed of an existing row is left alone.
func (r *routingRepo) UpsertScored(dbc dbctx.Context, row *evidence.DocumentCriterionRouting) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   routingKey,
		DoUpdates: clause.AssignmentColumns([]string{"score", "recommendation", "matched_item_ids", "updated_at"}),
	}).Create(row).Error
}

// UpsertManual creates a manual row, or pins an existing row as manual
// without touching its scores.
func (r *routingRepo) UpsertManual(dbc dbctx.Context, row *evidence.DocumentCriterionRouting) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.AutoRouted = false
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   routingKey,
		DoUpdates: clause.AssignmentColumns([]string{"auto_routed", "updated_at"}),
	}).Create(row).Error
}

// DeleteStaleAuto removes auto-routed rows of the document whose criterion is
// not in passing. Manual rows are never deleted here.
func (r *routingRepo) DeleteStaleAuto(dbc dbctx.Context, documentID uuid.UUID, passing []criteria.ID) (int64, error) {
	q := dbc.DB(r.db).Where("document_id = ? AND auto_routed = ?", documentID, true)
	if len(passing) > 0 {
		q = q.Where("criterion NOT IN ?", passing)
	}
	res := q.Delete(&evidence.DocumentCriterionRouting{})
	return res.RowsAffected, res.Error
}

func (r *routingRepo) Delete(dbc dbctx.Context, documentID uuid.UUID, c criteria.ID) (int64, error) {
	res := dbc.DB(r.db).
		Where("document_id = ? AND criterion = ?", documentID, c).
		Delete(&evidence.DocumentCriterionRouting{})
	return res.RowsAffected, res.Error
}
