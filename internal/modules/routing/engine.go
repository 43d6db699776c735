package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidCommand   = errors.New("invalid routing command")
)

type Deps struct {
	DB            *gorm.DB
	Log           *logger.Logger
	Documents     repos.DocumentRepo
	Verifications repos.VerificationRepo
	Routes        repos.RoutingRepo
}

type Engine struct {
	db            *gorm.DB
	log           *logger.Logger
	documents     repos.DocumentRepo
	verifications repos.VerificationRepo
	routes        repos.RoutingRepo
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		db:            deps.DB,
		log:           deps.Log.With("service", "RoutingEngine"),
		documents:     deps.Documents,
		verifications: deps.Verifications,
		routes:        deps.Routes,
	}
}

// Outcome summarizes one auto-route pass over a document.
type Outcome struct {
	DocumentID uuid.UUID     `json:"document_id"`
	Passing    []criteria.ID `json:"passing"`
	Retracted  int64         `json:"retracted"`
}

// AutoRoute reconciles a document's routing rows with its latest
// verifications. Auto-routed rows for criteria that no longer pass are
// deleted, passing criteria are upserted. Manual rows are never deleted and
// never flipped to auto-routed. Running it twice without new verifications
// changes nothing.
func (e *Engine) AutoRoute(ctx context.Context, caseID, documentID uuid.UUID) (*Outcome, error) {
	var out *Outcome
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		doc, err := e.documents.GetByID(dbc, caseID, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrDocumentNotFound
		}
		out, err = e.autoRoute(dbc, caseID, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) autoRoute(dbc dbctx.Context, caseID, documentID uuid.UUID) (*Outcome, error) {
	latest, err := e.verifications.LatestByDocument(dbc, documentID)
	if err != nil {
		return nil, fmt.Errorf("load verifications: %w", err)
	}

	passing := make([]criteria.ID, 0, len(latest))
	for c, v := range latest {
		if evidence.Passes(v.Score, v.Recommendation) {
			passing = append(passing, c)
		}
	}
	sort.Slice(passing, func(i, j int) bool { return passing[i].Ordinal() < passing[j].Ordinal() })

	retracted, err := e.routes.DeleteStaleAuto(dbc, documentID, passing)
	if err != nil {
		return nil, fmt.Errorf("retract stale routes: %w", err)
	}

	for _, c := range passing {
		v := latest[c]
		row := &evidence.DocumentCriterionRouting{
			CaseID:         caseID,
			DocumentID:     documentID,
			Criterion:      c,
			Score:          v.Score,
			Recommendation: v.Recommendation,
			AutoRouted:     true,
			MatchedItemIDs: datatypes.NewJSONType(nonNil(v.Payload.Data().MatchedItemIDs)),
		}
		if err := e.routes.UpsertScored(dbc, row); err != nil {
			return nil, fmt.Errorf("upsert route %s: %w", c, err)
		}
	}

	m := observability.Current()
	m.AddRoutingChange("retract", int(retracted))
	m.AddRoutingChange("upsert", len(passing))
	e.log.Debug("Auto-route complete", "case_id", caseID, "document_id", documentID, "passing", passing, "retracted", retracted)
	return &Outcome{DocumentID: documentID, Passing: passing, Retracted: retracted}, nil
}

type Action string

const (
	ActionAdd     Action = "add"
	ActionRemove  Action = "remove"
	ActionReroute Action = "re-route"
)

type Command struct {
	DocumentID uuid.UUID   `json:"documentId"`
	Criterion  criteria.ID `json:"criterion"`
	Action     Action      `json:"action"`
}

// Validate normalizes the criterion and checks the command is complete.
func (c *Command) Validate() error {
	c.Action = Action(strings.ToLower(strings.TrimSpace(string(c.Action))))
	switch c.Action {
	case ActionReroute:
		return nil
	case ActionAdd, ActionRemove:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.Action)
	}
	if c.DocumentID == uuid.Nil {
		return fmt.Errorf("%w: documentId required", ErrInvalidCommand)
	}
	id, err := criteria.Parse(string(c.Criterion))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	c.Criterion = id
	return nil
}

type ApplyResult struct {
	Action   Action    `json:"action"`
	Removed  int64     `json:"removed,omitempty"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Apply runs a manual routing command. add and remove bypass scoring; re-route
// auto-routes every user-uploaded document in the case.
func (e *Engine) Apply(ctx context.Context, caseID uuid.UUID, cmd Command) (*ApplyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	res := &ApplyResult{Action: cmd.Action}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		switch cmd.Action {
		case ActionReroute:
			docs, err := e.documents.ListByCaseAndSource(dbc, caseID, documents.SourceUserUploaded)
			if err != nil {
				return err
			}
			for _, d := range docs {
				o, err := e.autoRoute(dbc, caseID, d.ID)
				if err != nil {
					return err
				}
				res.Outcomes = append(res.Outcomes, *o)
			}
			return nil
		}

		doc, err := e.documents.GetByID(dbc, caseID, cmd.DocumentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrDocumentNotFound
		}

		switch cmd.Action {
		case ActionAdd:
			row := &evidence.DocumentCriterionRouting{
				CaseID:         caseID,
				DocumentID:     cmd.DocumentID,
				Criterion:      cmd.Criterion,
				Recommendation: evidence.RecommendationManual,
				MatchedItemIDs: datatypes.NewJSONType([]string{}),
			}
			latest, err := e.verifications.LatestByDocument(dbc, cmd.DocumentID)
			if err != nil {
				return err
			}
			if v, ok := latest[cmd.Criterion]; ok {
				row.Score = v.Score
				row.MatchedItemIDs = datatypes.NewJSONType(nonNil(v.Payload.Data().MatchedItemIDs))
			}
			if err := e.routes.UpsertManual(dbc, row); err != nil {
				return err
			}
			observability.Current().AddRoutingChange("manual_add", 1)
		case ActionRemove:
			n, err := e.routes.Delete(dbc, cmd.DocumentID, cmd.Criterion)
			if err != nil {
				return err
			}
			res.Removed = n
			observability.Current().AddRoutingChange("manual_remove", int(n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("Routing command applied", "case_id", caseID, "action", cmd.Action, "document_id", cmd.DocumentID, "criterion", cmd.Criterion)
	return res, nil
}

type RoutedDocument struct {
	DocumentID     uuid.UUID               `json:"documentId"`
	Name           string                  `json:"name"`
	Score          float64                 `json:"score"`
	Recommendation evidence.Recommendation `json:"recommendation"`
	AutoRouted     bool                    `json:"autoRouted"`
	MatchedItemIDs []string                `json:"matchedItemIds"`
}

type CriterionRoutes struct {
	Criterion criteria.ID      `json:"criterion"`
	Title     string           `json:"title"`
	Documents []RoutedDocument `json:"documents"`
}

type Overview struct {
	Criteria  []CriterionRoutes     `json:"criteria"`
	Documents []*documents.Document `json:"documents"`
}

// Overview groups every routing row of the case by criterion and lists all
// case documents for manual assignment.
func (e *Engine) Overview(ctx context.Context, caseID uuid.UUID) (*Overview, error) {
	dbc := dbctx.From(ctx)
	docs, err := e.documents.ListByCase(dbc, caseID)
	if err != nil {
		return nil, err
	}
	rows, err := e.routes.ListByCase(dbc, caseID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Name
	}

	byCriterion := make(map[criteria.ID][]RoutedDocument, criteria.Count)
	for _, r := range rows {
		byCriterion[r.Criterion] = append(byCriterion[r.Criterion], RoutedDocument{
			DocumentID:     r.DocumentID,
			Name:           names[r.DocumentID],
			Score:          r.Score,
			Recommendation: r.Recommendation,
			AutoRouted:     r.AutoRouted,
			MatchedItemIDs: nonNil(r.MatchedItemIDs.Data()),
		})
	}

	out := &Overview{Documents: docs}
	for _, c := range criteria.All() {
		routed := byCriterion[c.ID]
		if routed == nil {
			routed = []RoutedDocument{}
		}
		out.Criteria = append(out.Criteria, CriterionRoutes{Criterion: c.ID, Title: c.Title, Documents: routed})
	}
	return out, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
