package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/artifacts"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

// Classification thresholds on the best routed verification score.
const (
	PrimaryScore = 6.0
	BackupScore  = 4.0
	PromoteScore = 5.0
)

// Consolidate buckets every criterion into PRIMARY, BACKUP or EXCLUDED and
// writes the strategy narrative.
func (p *Pipeline) Consolidate(ctx context.Context, caseID uuid.UUID) (*stream.Stream, error) {
	_, inv, err := p.inventory(dbctx.Context{Ctx: ctx}, caseID)
	if err != nil {
		return nil, err
	}
	return p.start(ctx, "consolidate", consolidateStates, caseID, func(r *run) error {
		if err := r.advance(StateClassify); err != nil {
			return err
		}
		result := Classify(inv)
		for _, c := range result.Criteria {
			if err := r.stream.Emit(stream.TypeCriterionComplete, string(c.Criterion), c); err != nil {
				return err
			}
		}
		if err := r.stream.Snapshot(result, false); err != nil {
			return err
		}

		if err := r.advance(StateNarrative); err != nil {
			return err
		}
		var out struct {
			Narrative string `json:"narrative"`
		}
		if err := p.deps.Gen.Generate(r.ctx, openai.Request{
			System:     promptConsolidation,
			Context:    map[string]any{"classification": result, "applicant": inv.Applicant},
			SchemaName: SchemaConsolidation,
			Schema:     consolidationSchema(),
		}, &out); err != nil {
			return err
		}

		if err := r.advance(StateMergeAndEmit); err != nil {
			return err
		}
		result.Narrative = out.Narrative

		return r.finish(result, "consolidation", func(ctx context.Context) error {
			return p.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				dbc := dbctx.Context{Ctx: ctx, Tx: tx}
				c, err := p.deps.Consolidations.Append(dbc, &artifacts.CaseConsolidation{
					CaseID:          caseID,
					AnalysisVersion: inv.AnalysisVersion,
					Result:          datatypes.NewJSONType(result),
				})
				if err != nil {
					return fmt.Errorf("append consolidation: %w", err)
				}
				if _, err := p.deps.Cases.Advance(dbc, caseID, cases.StatusConsolidated); err != nil {
					return fmt.Errorf("advance case: %w", err)
				}
				r.log.Info("Consolidation persisted", "version", c.Version, "primary", result.PrimaryCount)
				return nil
			})
		})
	}), nil
}

// Classify is deterministic: the same inventory always yields the same
// buckets. BACKUP criteria scoring at least PromoteScore are promoted, by
// weighted score, until the Kazarian threshold is reached.
func Classify(inv *Inventory) artifacts.ConsolidationResult {
	res := artifacts.ConsolidationResult{Criteria: make([]artifacts.CriterionClassification, 0, len(inv.Criteria))}
	for _, c := range inv.Criteria {
		cl := artifacts.CriterionClassification{
			Criterion:      c.Criterion,
			Strength:       c.Strength,
			BestScore:      c.BestScore,
			VerifiedClaims: c.VerifiedClaims,
			DocumentIDs:    append([]uuid.UUID{}, c.DocumentIDs...),
		}
		switch {
		case c.Strength == criteria.StrengthStrong && c.BestScore >= PrimaryScore && c.VerifiedClaims > 0:
			cl.Bucket = artifacts.BucketPrimary
			cl.Rationale = fmt.Sprintf("strong verdict, best exhibit scored %.1f with %d verified claims", c.BestScore, c.VerifiedClaims)
		case c.Strength == criteria.StrengthStrong:
			cl.Bucket = artifacts.BucketBackup
			cl.Rationale = "strong verdict without a verified exhibit scoring 6.0"
		case c.Strength != criteria.StrengthNone && c.BestScore >= BackupScore:
			cl.Bucket = artifacts.BucketBackup
			cl.Rationale = fmt.Sprintf("%s verdict, best exhibit scored %.1f", c.Strength, c.BestScore)
		default:
			cl.Bucket = artifacts.BucketExcluded
			cl.Rationale = "insufficient evidence"
		}
		res.Criteria = append(res.Criteria, cl)
	}
	res.Tally()

	if !res.ThresholdMet {
		var candidates []int
		for i, c := range res.Criteria {
			if c.Bucket == artifacts.BucketBackup && c.BestScore >= PromoteScore {
				candidates = append(candidates, i)
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			ca, cb := res.Criteria[candidates[a]], res.Criteria[candidates[b]]
			return weighted(ca) > weighted(cb)
		})
		for _, i := range candidates {
			if res.PrimaryCount >= artifacts.KazarianThreshold {
				break
			}
			res.Criteria[i].Bucket = artifacts.BucketPrimary
			res.Criteria[i].Promoted = true
			res.Criteria[i].Rationale += "; promoted to reach three criteria"
			res.Tally()
		}
	}
	return res
}

func weighted(c artifacts.CriterionClassification) float64 {
	w := 1.0
	if def, ok := criteria.Get(c.Criterion); ok && def.Weight > 0 {
		w = def.Weight
	}
	return c.BestScore * w
}
