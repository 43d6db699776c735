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

type qualitativeOut struct {
	OverallAssessment struct {
		DenialProbabilityPct float64 `json:"denial_probability_pct"`
		RiskLevel            string  `json:"risk_level"`
		Summary              string  `json:"summary"`
	} `json:"overall_assessment"`
	CriterionRisks []struct {
		Criterion string   `json:"criterion"`
		Risk      string   `json:"risk"`
		Issues    []string `json:"issues"`
	} `json:"criterion_risks"`
	RfeTriggers     []string `json:"rfe_triggers"`
	Recommendations []string `json:"recommendations"`
}

// DenialProbability runs a qualitative pass, then a quantitative pass fed the
// first pass and the evidence inventory. The reconciled result is both the
// last snapshot and what gets persisted.
func (p *Pipeline) DenialProbability(ctx context.Context, caseID uuid.UUID) (*stream.Stream, error) {
	_, inv, err := p.inventory(dbctx.Context{Ctx: ctx}, caseID)
	if err != nil {
		return nil, err
	}
	return p.start(ctx, "denial_probability", denialStates, caseID, func(r *run) error {
		if err := r.advance(StateQualitative); err != nil {
			return err
		}
		var qual qualitativeOut
		if err := p.deps.Gen.Generate(r.ctx, openai.Request{
			System:     promptDenialQualitative,
			Context:    map[string]any{"inventory": inv},
			SchemaName: SchemaDenialQualitative,
			Schema:     denialQualitativeSchema(),
		}, &qual); err != nil {
			return err
		}
		result := qualitative(qual)
		result.Reconcile()
		if err := r.stream.Snapshot(result, false); err != nil {
			return err
		}

		if err := r.advance(StateQuantitative); err != nil {
			return err
		}
		var quant artifacts.ProbabilityBreakdown
		if err := p.deps.Gen.Generate(r.ctx, openai.Request{
			System:     promptDenialQuantitative,
			Context:    map[string]any{"qualitative": result, "inventory": inv},
			SchemaName: SchemaDenialQuantitative,
			Schema:     denialQuantitativeSchema(),
		}, &quant); err != nil {
			return err
		}

		if err := r.advance(StateMergeAndEmit); err != nil {
			return err
		}
		if quant.Adjustments == nil {
			quant.Adjustments = []artifacts.Adjustment{}
		}
		result.ProbabilityBreakdown = &quant
		result.Reconcile()

		return r.finish(result, "denial_probability", func(ctx context.Context) error {
			d, err := p.deps.Denials.Append(dbctx.Context{Ctx: ctx}, &artifacts.DenialProbability{
				CaseID: caseID,
				Result: datatypes.NewJSONType(result),
			})
			if err != nil {
				return fmt.Errorf("append denial probability: %w", err)
			}
			r.log.Info("Denial probability persisted", "version", d.Version, "pct", result.OverallAssessment.DenialProbabilityPct)
			return nil
		})
	}), nil
}

func qualitative(q qualitativeOut) artifacts.DenialResult {
	res := artifacts.DenialResult{
		OverallAssessment: artifacts.OverallAssessment{
			DenialProbabilityPct: q.OverallAssessment.DenialProbabilityPct,
			RiskLevel:            artifacts.RiskLevel(q.OverallAssessment.RiskLevel),
			Summary:              q.OverallAssessment.Summary,
		},
		CriterionRisks:  make([]artifacts.CriterionRisk, 0, len(q.CriterionRisks)),
		RfeTriggers:     nonNil(q.RfeTriggers),
		Recommendations: nonNil(q.Recommendations),
	}
	for _, cr := range q.CriterionRisks {
		id, err := criteria.Parse(cr.Criterion)
		if err != nil {
			continue
		}
		res.CriterionRisks = append(res.CriterionRisks, artifacts.CriterionRisk{
			Criterion: id,
			Risk:      artifacts.RiskLevel(cr.Risk),
			Issues:    nonNil(cr.Issues),
		})
	}
	return res
}
