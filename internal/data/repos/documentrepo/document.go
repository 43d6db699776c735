package documentrepo

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, d *documents.Document) (*documents.Document, error)
	GetByID(dbc dbctx.Context, caseID uuid.UUID, id uuid.UUID) (*documents.Document, error)
	GetByIDs(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*documents.Document, error)
	ListByCase(dbc dbctx.Context, caseID uuid.UUID) ([]*documents.Document, error)
	ListByCaseAndSource(dbc dbctx.Context, caseID uuid.UUID, source documents.Source) ([]*documents.Document, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{
		db:  db,
		log: baseLog.With("repo", "DocumentRepo"),
	}
}

func (r *documentRepo) Create(dbc dbctx.Context, d *documents.Document) (*documents.Document, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = documents.StatusDraft
	}
	if d.Source == "" {
		d.Source = documents.SourceUserUploaded
	}
	if d.Category == "" {
		d.Category = documents.CategoryOther
	}
	if err := dbc.DB(r.db).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetByID only finds documents that belong to caseID.
func (r *documentRepo) GetByID(dbc dbctx.Context, caseID uuid.UUID, id uuid.UUID) (*documents.Document, error) {
	var rows []*documents.Document
	if err := dbc.DB(r.db).
		Where("id = ? AND case_id = ?", id, caseID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *documentRepo) GetByIDs(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*documents.Document, error) {
	out := []*documents.Document{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("case_id = ? AND id IN ?", caseID, ids).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID) ([]*documents.Document, error) {
	out := []*documents.Document{}
	if err := dbc.DB(r.db).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) ListByCaseAndSource(dbc dbctx.Context, caseID uuid.UUID, source documents.Source) ([]*documents.Document, error) {
	out := []*documents.Document{}
	if err := dbc.DB(r.db).
		Where("case_id = ? AND source = ?", caseID, source).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&documents.Document{}).Where("id = ?", id).Updates(updates).Error
}
