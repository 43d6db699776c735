package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/modules/verification"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

type DocStarted struct {
	DocumentID uuid.UUID `json:"document_id"`
	Name       string    `json:"name"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
}

type CriterionScored struct {
	DocumentID uuid.UUID `json:"document_id"`
	verification.Score
}

type DocComplete struct {
	DocumentID uuid.UUID            `json:"document_id"`
	Scores     []verification.Score `json:"scores"`
	Passing    int                  `json:"passing"`
	Failed     int                  `json:"failed"`
}

type VerifySummary struct {
	Documents []DocComplete `json:"documents"`
}

// VerifyDocuments scores each document against every criterion, one
// document at a time. An empty docIDs verifies every user-uploaded document
// in the case. Each document's verifications are persisted and auto-routed
// in the background as soon as its scores are in.
func (p *Pipeline) VerifyDocuments(ctx context.Context, caseID uuid.UUID, docIDs []uuid.UUID) (*stream.Stream, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var (
		docs []*documents.Document
		err  error
	)
	if len(docIDs) == 0 {
		docs, err = p.deps.Documents.ListByCaseAndSource(dbc, caseID, documents.SourceUserUploaded)
	} else {
		want := uniqueIDs(docIDs)
		docs, err = p.deps.Documents.GetByIDs(dbc, caseID, want)
		if err == nil && len(docs) != len(want) {
			return nil, ErrDocumentNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	var ext analysis.Extraction
	latest, err := p.deps.Analyses.Latest(dbc, caseID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		ext = latest.Extraction.Data()
	}

	return p.start(ctx, "verify", verifyStates, caseID, func(r *run) error {
		if err := r.advance(StateVerify); err != nil {
			return err
		}
		summary := VerifySummary{Documents: make([]DocComplete, 0, len(docs))}
		for i, doc := range docs {
			doc := doc
			if err := r.stream.Emit(stream.TypeDocStarted, doc.ID.String(), DocStarted{
				DocumentID: doc.ID, Name: doc.Name, Index: i, Total: len(docs),
			}); err != nil {
				return err
			}
			scores, err := p.deps.Verifier.VerifyDocument(r.ctx, doc, ext, func(s verification.Score) {
				_ = r.stream.Emit(stream.TypeCriterionComplete, string(s.Criterion), CriterionScored{DocumentID: doc.ID, Score: s})
			})
			if err != nil {
				return fmt.Errorf("verify %s: %w", doc.ID, err)
			}
			done := DocComplete{DocumentID: doc.ID, Scores: scores}
			for _, s := range scores {
				switch {
				case s.Err != nil:
					done.Failed++
				case s.Passes:
					done.Passing++
				}
			}
			if err := r.stream.Emit(stream.TypeDocComplete, doc.ID.String(), done); err != nil {
				return err
			}
			summary.Documents = append(summary.Documents, done)

			r.submit("verification", func(ctx context.Context) error {
				if _, err := p.deps.Verifier.Record(ctx, caseID, doc.ID, scores); err != nil {
					return err
				}
				out, err := p.deps.Router.AutoRoute(ctx, caseID, doc.ID)
				if err != nil {
					return err
				}
				r.log.Debug("Document verified", "document_id", doc.ID, "passing", out.Passing, "retracted", out.Retracted)
				return nil
			})
		}

		if err := r.stream.Emit(stream.TypeAllComplete, "", summary); err != nil {
			return err
		}
		r.stream.Close()
		if err := r.advance(StatePersist); err != nil {
			return err
		}
		r.submit("verification_status", func(ctx context.Context) error {
			if _, err := p.deps.Cases.Advance(dbctx.Context{Ctx: ctx}, caseID, cases.StatusVerified); err != nil {
				return err
			}
			_ = r.advance(StateComplete)
			return nil
		})
		return nil
	}), nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
