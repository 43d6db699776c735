package caserepo

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type CaseRepo interface {
	Create(dbc dbctx.Context, c *cases.Case) (*cases.Case, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*cases.Case, error)
	Claim(dbc dbctx.Context, id uuid.UUID, userID uuid.UUID) (bool, error)
	Advance(dbc dbctx.Context, id uuid.UUID, status cases.Status) (bool, error)
}

type caseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	return &caseRepo{
		db:  db,
		log: baseLog.With("repo", "CaseRepo"),
	}
}

func (r *caseRepo) Create(dbc dbctx.Context, c *cases.Case) (*cases.Case, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = cases.StatusIntake
	}
	if err := dbc.DB(r.db).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID returns nil, nil when the case does not exist.
func (r *caseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*cases.Case, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []cases.Case
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Claim assigns an owner to an unclaimed case. It reports false if the case
// already has an owner.
func (r *caseRepo) Claim(dbc dbctx.Context, id uuid.UUID, userID uuid.UUID) (bool, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return false, fmt.Errorf("claim: missing ids")
	}
	res := dbc.DB(r.db).Model(&cases.Case{}).
		Where("id = ? AND owner_user_id IS NULL", id).
		Update("owner_user_id", userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Advance moves the case forward; regressions are ignored and report false.
func (r *caseRepo) Advance(dbc dbctx.Context, id uuid.UUID, status cases.Status) (bool, error) {
	changed := false
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		var c cases.Case
		if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
			return err
		}
		if !c.Advance(status) {
			return nil
		}
		changed = true
		return tx.Model(&cases.Case{}).Where("id = ?", id).Update("status", c.Status).Error
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
