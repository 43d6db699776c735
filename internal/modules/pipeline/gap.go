package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/domain/artifacts"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

type gapOut struct {
	Summary  string `json:"summary"`
	Criteria []struct {
		Criterion       string   `json:"criterion"`
		Status          string   `json:"status"`
		Gaps            []string `json:"gaps"`
		Recommendations []string `json:"recommendations"`
	} `json:"criteria"`
	PriorityActions []string `json:"priority_actions"`
}

// GapAnalysis compares the latest analysis with what has been routed and
// streams the per-criterion coverage.
func (p *Pipeline) GapAnalysis(ctx context.Context, caseID uuid.UUID) (*stream.Stream, error) {
	_, inv, err := p.inventory(dbctx.Context{Ctx: ctx}, caseID)
	if err != nil {
		return nil, err
	}
	return p.start(ctx, "gap_analysis", gapStates, caseID, func(r *run) error {
		if err := r.advance(StateGapAnalysis); err != nil {
			return err
		}
		var out gapOut
		if err := p.deps.Gen.Generate(r.ctx, openai.Request{
			System:     promptGapAnalysis,
			Context:    map[string]any{"inventory": inv},
			SchemaName: SchemaGapAnalysis,
			Schema:     gapSchema(),
		}, &out); err != nil {
			return err
		}

		if err := r.advance(StateMergeAndEmit); err != nil {
			return err
		}
		result := mergeGaps(inv, out)
		for _, c := range result.Criteria {
			if err := r.stream.Emit(stream.TypeCriterionComplete, string(c.Criterion), c); err != nil {
				return err
			}
		}
		return r.finish(result, "gap_analysis", func(ctx context.Context) error {
			g, err := p.deps.Gaps.Append(dbctx.Context{Ctx: ctx}, &artifacts.GapAnalysis{
				CaseID:          caseID,
				AnalysisVersion: inv.AnalysisVersion,
				Result:          datatypes.NewJSONType(result),
			})
			if err != nil {
				return fmt.Errorf("append gap analysis: %w", err)
			}
			r.log.Info("Gap analysis persisted", "version", g.Version)
			return nil
		})
	}), nil
}

// mergeGaps lays the generated findings over the inventory. There is always
// one entry per criterion; strength and routed counts come from the case,
// never from the generator.
func mergeGaps(inv *Inventory, out gapOut) artifacts.GapResult {
	byID := make(map[criteria.ID]int, len(out.Criteria))
	for i, c := range out.Criteria {
		if id, err := criteria.Parse(c.Criterion); err == nil {
			if _, dup := byID[id]; !dup {
				byID[id] = i
			}
		}
	}
	res := artifacts.GapResult{
		Summary:         out.Summary,
		Criteria:        make([]artifacts.CriterionGap, 0, criteria.Count),
		PriorityActions: nonNil(out.PriorityActions),
	}
	for _, c := range inv.Criteria {
		g := artifacts.CriterionGap{
			Criterion:       c.Criterion,
			Strength:        c.Strength,
			RoutedDocuments: len(c.DocumentIDs),
			Gaps:            []string{},
			Recommendations: []string{},
		}
		if i, ok := byID[c.Criterion]; ok {
			gen := out.Criteria[i]
			g.Status = artifacts.CoverageStatus(gen.Status)
			g.Gaps = nonNil(gen.Gaps)
			g.Recommendations = nonNil(gen.Recommendations)
		}
		switch g.Status {
		case artifacts.CoverageMet, artifacts.CoveragePartial, artifacts.CoverageMissing:
		default:
			g.Status = coverageFor(c)
		}
		res.Criteria = append(res.Criteria, g)
	}
	return res
}

func coverageFor(c CriterionInventory) artifacts.CoverageStatus {
	switch {
	case c.Strength == criteria.StrengthStrong && len(c.DocumentIDs) > 0:
		return artifacts.CoverageMet
	case c.Strength != criteria.StrengthNone || len(c.DocumentIDs) > 0:
		return artifacts.CoveragePartial
	default:
		return artifacts.CoverageMissing
	}
}
