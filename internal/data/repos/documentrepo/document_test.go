package documentrepo

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

func TestDocumentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDocumentRepo(db, testutil.Logger(t))
	c := testutil.SeedCase(t, ctx, tx, nil)

	uploaded, err := repo.Create(dbc, &documents.Document{CaseID: c.ID, Name: "award.pdf", Type: documents.TypePDF})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if uploaded.Status != documents.StatusDraft || uploaded.Source != documents.SourceUserUploaded || uploaded.Category != documents.CategoryOther {
		t.Fatalf("Create defaults not applied: %+v", uploaded)
	}
	if _, err := repo.Create(dbc, &documents.Document{CaseID: c.ID, Name: "petition.md", Type: documents.TypeMarkdown, Source: documents.SourceSystemGenerated}); err != nil {
		t.Fatalf("Create(system): %v", err)
	}

	if got, err := repo.GetByID(dbc, c.ID, uploaded.ID); err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", err, got)
	}
	if got, err := repo.GetByID(dbc, uuid.New(), uploaded.ID); err != nil || got != nil {
		t.Fatalf("GetByID(other case): expected nil, got %v err=%v", got, err)
	}

	all, err := repo.ListByCase(dbc, c.ID)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListByCase: %v len=%d", err, len(all))
	}
	user, err := repo.ListByCaseAndSource(dbc, c.ID, documents.SourceUserUploaded)
	if err != nil || len(user) != 1 || user[0].ID != uploaded.ID {
		t.Fatalf("ListByCaseAndSource: %v %v", err, user)
	}

	if err := repo.UpdateFields(dbc, uploaded.ID, map[string]interface{}{"status": documents.StatusFinal, "category": documents.CategoryAward}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ := repo.GetByID(dbc, c.ID, uploaded.ID)
	if got.Status != documents.StatusFinal || got.Category != documents.CategoryAward {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}

	byIDs, err := repo.GetByIDs(dbc, c.ID, []uuid.UUID{uploaded.ID, uuid.New()})
	if err != nil || len(byIDs) != 1 {
		t.Fatalf("GetByIDs: %v len=%d", err, len(byIDs))
	}
}
