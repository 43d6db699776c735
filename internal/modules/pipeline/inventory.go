package pipeline

import (
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

// CriterionInventory is what the case holds for one criterion right now.
type CriterionInventory struct {
	Criterion      criteria.ID       `json:"criterion"`
	Title          string            `json:"title"`
	Strength       criteria.Strength `json:"strength"`
	Reason         string            `json:"reason,omitempty"`
	ItemCount      int               `json:"item_count"`
	DocumentIDs    []uuid.UUID       `json:"document_ids"`
	BestScore      float64           `json:"best_score"`
	VerifiedClaims int               `json:"verified_claims"`
	RedFlags       []string          `json:"red_flags,omitempty"`
}

type Inventory struct {
	AnalysisVersion int                   `json:"analysis_version"`
	Applicant       analysis.PersonalInfo `json:"applicant"`
	Criteria        []CriterionInventory  `json:"criteria"`
}

func (inv *Inventory) For(id criteria.ID) *CriterionInventory {
	for i := range inv.Criteria {
		if inv.Criteria[i].Criterion == id {
			return &inv.Criteria[i]
		}
	}
	return nil
}

// inventory loads the latest analysis, routing rows and verifications for the
// case. It returns ErrNoAnalysis when the case was never analyzed.
func (p *Pipeline) inventory(dbc dbctx.Context, caseID uuid.UUID) (*analysis.Analysis, *Inventory, error) {
	latest, err := p.deps.Analyses.Latest(dbc, caseID)
	if err != nil {
		return nil, nil, err
	}
	if latest == nil {
		return nil, nil, ErrNoAnalysis
	}
	routes, err := p.deps.Routes.ListByCase(dbc, caseID)
	if err != nil {
		return nil, nil, err
	}
	verifs, err := p.deps.Verifications.LatestByCase(dbc, caseID)
	if err != nil {
		return nil, nil, err
	}
	return latest, buildInventory(latest, routes, verifs), nil
}

func buildInventory(a *analysis.Analysis, routes []evidence.DocumentCriterionRouting, verifs map[uuid.UUID]map[criteria.ID]evidence.EvidenceVerification) *Inventory {
	ext := a.Extraction.Data()
	results := analysis.NormalizeResults(a.Criteria.Data())
	inv := &Inventory{AnalysisVersion: a.Version, Applicant: ext.PersonalInfo}
	for _, r := range results {
		c := CriterionInventory{
			Criterion:   r.Criterion,
			Strength:    r.Strength,
			Reason:      r.Reason,
			ItemCount:   len(ext.ItemsFor(r.Criterion)),
			DocumentIDs: []uuid.UUID{},
		}
		if def, ok := criteria.Get(r.Criterion); ok {
			c.Title = def.Title
		}
		inv.Criteria = append(inv.Criteria, c)
	}
	for _, row := range routes {
		c := inv.For(row.Criterion)
		if c == nil {
			continue
		}
		c.DocumentIDs = append(c.DocumentIDs, row.DocumentID)
		if row.Score > c.BestScore {
			c.BestScore = row.Score
		}
		v, ok := verifs[row.DocumentID][row.Criterion]
		if !ok {
			continue
		}
		payload := v.Payload.Data()
		c.VerifiedClaims += len(payload.VerifiedClaims)
		c.RedFlags = append(c.RedFlags, payload.RedFlags...)
	}
	return inv
}
