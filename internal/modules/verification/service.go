package verification

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

// DocumentTextLimit bounds the document text sent per criterion.
const DocumentTextLimit = 12000

type Deps struct {
	DB            *gorm.DB
	Log           *logger.Logger
	Gen           openai.Generator
	Verifications repos.VerificationRepo
	Concurrency   int
}

type Service struct {
	db            *gorm.DB
	log           *logger.Logger
	gen           openai.Generator
	verifications repos.VerificationRepo
	concurrency   int
}

func New(deps Deps) *Service {
	conc := deps.Concurrency
	if conc < 1 {
		conc = 3
	}
	return &Service{
		db:            deps.DB,
		log:           deps.Log.With("service", "EvidenceVerification"),
		gen:           deps.Gen,
		verifications: deps.Verifications,
		concurrency:   conc,
	}
}

// Score is the verdict of one document against one criterion. Err is set when
// the generator produced nothing for the criterion; such scores are reported
// but never stored.
type Score struct {
	Criterion      criteria.ID             `json:"criterion"`
	Score          float64                 `json:"score"`
	Recommendation evidence.Recommendation `json:"recommendation"`
	Summary        string                  `json:"summary"`
	VerifiedClaims []string                `json:"verified_claims"`
	RedFlags       []string                `json:"red_flags"`
	MatchedItemIDs []string                `json:"matched_item_ids"`
	Passes         bool                    `json:"passes"`
	Err            error                   `json:"-"`
	Error          string                  `json:"error,omitempty"`
}

type verifyContext struct {
	Criterion      criteria.ID `json:"criterion"`
	CriterionTitle string      `json:"criterion_title"`
	DocumentName   string      `json:"document_name"`
	DocumentType   string      `json:"document_type"`
	Category       string      `json:"document_category"`
	DocumentText   string      `json:"document_text"`
	Items          []itemRef   `json:"evidence_items"`
}

type itemRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// VerifyDocument scores doc against every criterion with bounded concurrency.
// onResult, when set, is called once per criterion as soon as its score is
// known; calls are serialized. The returned scores are in C1..C10 order.
func (s *Service) VerifyDocument(ctx context.Context, doc *documents.Document, ext analysis.Extraction, onResult func(Score)) ([]Score, error) {
	ids := criteria.IDs()
	out := make([]Score, len(ids))
	text := evaluation.Truncate(strings.TrimSpace(doc.Text()), DocumentTextLimit)

	var reportMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sc := s.score(gctx, doc, text, ext, id)
			out[i] = sc
			if onResult != nil {
				reportMu.Lock()
				onResult(sc)
				reportMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) score(ctx context.Context, doc *documents.Document, text string, ext analysis.Extraction, id criteria.ID) Score {
	crit, _ := criteria.Get(id)
	items := ext.ItemsFor(id)
	refs := make([]itemRef, 0, len(items))
	for _, it := range items {
		refs = append(refs, itemRef{ID: it.ID, Title: it.Title})
	}

	req := openai.Request{
		System: systemPrompt,
		Context: verifyContext{
			Criterion:      id,
			CriterionTitle: crit.Title,
			DocumentName:   doc.Name,
			DocumentType:   string(doc.Type),
			Category:       doc.Category,
			DocumentText:   text,
			Items:          refs,
		},
		SchemaName: SchemaName,
		Schema:     verificationSchema(),
	}

	start := time.Now()
	var g generated
	if err := s.gen.Generate(ctx, req, &g); err != nil {
		observability.Current().ObserveStage("verification", string(id), "error", time.Since(start))
		s.log.Warn("Criterion verification failed", "document_id", doc.ID, "criterion", id, "error", err)
		return Score{Criterion: id, Err: err, Error: err.Error(), Recommendation: evidence.RecommendationInsufficient}
	}
	observability.Current().ObserveStage("verification", string(id), "ok", time.Since(start))

	rec := evidence.Recommendation(strings.ToUpper(strings.TrimSpace(g.Recommendation)))
	if !rec.Valid() || rec == evidence.RecommendationManual {
		rec = evidence.RecommendationInsufficient
	}
	score := clampScore(g.Score)
	return Score{
		Criterion:      id,
		Score:          score,
		Recommendation: rec,
		Summary:        strings.TrimSpace(g.Summary),
		VerifiedClaims: nonNil(g.VerifiedClaims),
		RedFlags:       nonNil(g.RedFlags),
		MatchedItemIDs: knownItems(g.MatchedItemIDs, refs),
		Passes:         evidence.Passes(score, rec),
	}
}

// Record appends a verification version for every successful score in one
// transaction.
func (s *Service) Record(ctx context.Context, caseID, documentID uuid.UUID, scores []Score) ([]*evidence.EvidenceVerification, error) {
	var saved []*evidence.EvidenceVerification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for _, sc := range scores {
			if sc.Err != nil || !sc.Criterion.Valid() {
				continue
			}
			row, err := s.verifications.Append(dbc, &evidence.EvidenceVerification{
				CaseID:         caseID,
				DocumentID:     documentID,
				Criterion:      sc.Criterion,
				Score:          sc.Score,
				Recommendation: sc.Recommendation,
				Payload: datatypes.NewJSONType(evidence.VerificationPayload{
					Summary:        sc.Summary,
					VerifiedClaims: nonNil(sc.VerifiedClaims),
					RedFlags:       nonNil(sc.RedFlags),
					MatchedItemIDs: nonNil(sc.MatchedItemIDs),
				}),
			})
			if err != nil {
				return fmt.Errorf("append verification %s: %w", sc.Criterion, err)
			}
			saved = append(saved, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Latest returns the authoritative verification per criterion for a document.
func (s *Service) Latest(ctx context.Context, documentID uuid.UUID) (map[criteria.ID]evidence.EvidenceVerification, error) {
	return s.verifications.LatestByDocument(dbctx.From(ctx), documentID)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return math.Round(v*10) / 10
}

// knownItems drops matched ids the generator invented.
func knownItems(ids []string, refs []itemRef) []string {
	known := make(map[string]bool, len(refs))
	for _, r := range refs {
		known[r.ID] = true
	}
	out := []string{}
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
