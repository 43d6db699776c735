package caserepo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

func TestCaseRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCaseRepo(db, testutil.Logger(t))

	c, err := repo.Create(dbc, &cases.Case{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == uuid.Nil || c.Status != cases.StatusIntake {
		t.Fatalf("Create: unexpected case %+v", c)
	}

	got, err := repo.GetByID(dbc, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID(missing): err=%v got=%v", err, missing)
	}

	owner := uuid.New()
	ok, err := repo.Claim(dbc, c.ID, owner)
	if err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Claim(dbc, c.ID, uuid.New())
	if err != nil || ok {
		t.Fatalf("second Claim: expected false, ok=%v err=%v", ok, err)
	}

	if changed, err := repo.Advance(dbc, c.ID, cases.StatusVerified); err != nil || !changed {
		t.Fatalf("Advance: changed=%v err=%v", changed, err)
	}
	if changed, err := repo.Advance(dbc, c.ID, cases.StatusAnalyzed); err != nil || changed {
		t.Fatalf("Advance(regress): changed=%v err=%v", changed, err)
	}
	got, _ = repo.GetByID(dbc, c.ID)
	if got.Status != cases.StatusVerified || got.OwnerUserID == nil || *got.OwnerUserID != owner {
		t.Fatalf("unexpected final case %+v", got)
	}
}

func TestCaseProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewCaseProfileRepo(db, testutil.Logger(t))
	caseID := uuid.New()

	if p, err := repo.GetByCaseID(dbc, caseID); err != nil || p != nil {
		t.Fatalf("GetByCaseID(empty): p=%v err=%v", p, err)
	}
	p := &cases.CaseProfile{
		CaseID:          caseID,
		Data:            datatypes.JSON([]byte(`{"personal_info":{"full_name":"A"}}`)),
		Version:         1,
		SkippedSections: datatypes.NewJSONType([]string{"awards"}),
		IntakeStatus:    cases.IntakeInProgress,
	}
	if err := repo.Save(dbc, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p.Version = 2
	if err := repo.Save(dbc, p); err != nil {
		t.Fatalf("Save(update): %v", err)
	}
	got, err := repo.GetByCaseID(dbc, caseID)
	if err != nil || got == nil {
		t.Fatalf("GetByCaseID: p=%v err=%v", got, err)
	}
	if got.Version != 2 || len(got.SkippedSections.Data()) != 1 {
		t.Fatalf("unexpected profile %+v", got)
	}
}
