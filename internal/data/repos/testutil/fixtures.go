package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
)

func SeedCase(tb testing.TB, ctx context.Context, tx *gorm.DB, owner *uuid.UUID) *cases.Case {
	tb.Helper()
	c := &cases.Case{
		ID:          uuid.New(),
		OwnerUserID: owner,
		Status:      cases.StatusIntake,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed case: %v", err)
	}
	return c
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, name string, source documents.Source) *documents.Document {
	tb.Helper()
	text := "Exhibit text for " + name
	d := &documents.Document{
		ID:          uuid.New(),
		CaseID:      caseID,
		Name:        name,
		Type:        documents.TypePDF,
		Source:      source,
		Status:      documents.StatusDraft,
		Category:    documents.CategoryOther,
		TextContent: &text,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

// SeedVerification inserts a verification row with an explicit version.
func SeedVerification(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID, docID uuid.UUID, c criteria.ID, version int, score float64, rec evidence.Recommendation) *evidence.EvidenceVerification {
	tb.Helper()
	v := &evidence.EvidenceVerification{
		ID:             uuid.New(),
		CaseID:         caseID,
		DocumentID:     docID,
		Criterion:      c,
		Version:        version,
		Score:          score,
		Recommendation: rec,
		Payload: datatypes.NewJSONType(evidence.VerificationPayload{
			VerifiedClaims: []string{},
			RedFlags:       []string{},
			MatchedItemIDs: []string{"item-" + string(c)},
		}),
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed verification: %v", err)
	}
	return v
}
