package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/modules/extraction"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

// AnalysisSnapshot is the cumulative analyze result. Every snapshot frame
// carries the whole thing; later frames only add to earlier ones.
type AnalysisSnapshot struct {
	Extraction  analysis.Extraction        `json:"extraction"`
	Criteria    []analysis.CriterionResult `json:"criteria"`
	Completed   []criteria.ID              `json:"completed"`
	StrongCount int                        `json:"strong_count"`
	WeakCount   int                        `json:"weak_count"`
}

type quickProfileOut struct {
	PersonalInfo    analysis.PersonalInfo `json:"personal_info"`
	CriteriaSummary []struct {
		Criterion string `json:"criterion"`
		Strength  string `json:"strength"`
		Rationale string `json:"rationale"`
	} `json:"criteria_summary"`
}

type criterionOut struct {
	Items       []analysis.EvidenceItem `json:"items"`
	Strength    string                  `json:"strength"`
	Rationale   string                  `json:"rationale"`
	KeyEvidence []string                `json:"key_evidence"`
}

type analyzeState struct {
	ext       analysis.Extraction
	results   []analysis.CriterionResult
	completed []criteria.ID
}

func (st *analyzeState) snapshot() AnalysisSnapshot {
	st.ext.CriteriaSummary = summaryFrom(st.results, st.ext.CriteriaSummary)
	st.ext.CriteriaSummary = extraction.Summarize(st.ext)
	strong, weak := analysis.CountStrengths(st.results)
	return AnalysisSnapshot{
		Extraction:  st.ext,
		Criteria:    st.results,
		Completed:   append([]criteria.ID{}, st.completed...),
		StrongCount: strong,
		WeakCount:   weak,
	}
}

// Analyze extracts the case's evidence from its resume in three passes and
// streams the growing result. The new Analysis version is persisted in the
// background once the stream has closed.
func (p *Pipeline) Analyze(ctx context.Context, caseID uuid.UUID) (*stream.Stream, error) {
	dbc := dbctx.Context{Ctx: ctx}
	docs, err := p.deps.Documents.ListByCase(dbc, caseID)
	if err != nil {
		return nil, err
	}
	resume := evaluation.ResumeText(docs, evaluation.ResumeTextLimit)
	if strings.TrimSpace(resume) == "" {
		return nil, ErrNoResume
	}
	prior, err := p.deps.Analyses.Latest(dbc, caseID)
	if err != nil {
		return nil, err
	}
	profile, err := p.deps.Profiles.GetByCaseID(dbc, caseID)
	if err != nil {
		return nil, err
	}
	survey, err := surveyAnswers(profile)
	if err != nil {
		return nil, err
	}

	return p.start(ctx, "analyze", analyzeStates, caseID, func(r *run) error {
		st := &analyzeState{results: analysis.EmptyResults()}

		if err := r.advance(StateQuickProfile); err != nil {
			return err
		}
		if err := p.quickProfile(r.ctx, resume, st); err != nil {
			return err
		}
		if err := r.stream.Snapshot(st.snapshot(), false); err != nil {
			return err
		}

		if err := r.advance(StateDetailedExtraction); err != nil {
			return err
		}
		for _, def := range criteria.All() {
			res, err := p.extractCriterion(r.ctx, resume, def, st, prior)
			if err != nil {
				return fmt.Errorf("extract %s: %w", def.ID, err)
			}
			if err := r.stream.Emit(stream.TypeCriterionComplete, string(def.ID), res); err != nil {
				return err
			}
			if err := r.stream.Snapshot(st.snapshot(), false); err != nil {
				return err
			}
		}

		if err := r.advance(StateMergeAndEmit); err != nil {
			return err
		}
		merged, err := extraction.Merge(st.ext, survey)
		if err != nil {
			return fmt.Errorf("merge survey: %w", err)
		}
		st.ext = merged
		final := st.snapshot()

		return r.finish(final, "analysis", func(ctx context.Context) error {
			return p.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				dbc := dbctx.Context{Ctx: ctx, Tx: tx}
				a, err := p.deps.Analyses.Append(dbc, &analysis.Analysis{
					CaseID:     caseID,
					Extraction: datatypes.NewJSONType(final.Extraction),
					Criteria:   datatypes.NewJSONType(final.Criteria),
				})
				if err != nil {
					return fmt.Errorf("append analysis: %w", err)
				}
				if _, err := p.deps.Cases.Advance(dbc, caseID, cases.StatusAnalyzed); err != nil {
					return fmt.Errorf("advance case: %w", err)
				}
				r.log.Info("Analysis persisted", "version", a.Version, "strong", a.StrongCount, "weak", a.WeakCount)
				return nil
			})
		})
	}), nil
}

func (p *Pipeline) quickProfile(ctx context.Context, resume string, st *analyzeState) error {
	var out quickProfileOut
	err := p.deps.Gen.Generate(ctx, openai.Request{
		System:     promptQuickProfile,
		Context:    map[string]any{"resume": resume},
		SchemaName: SchemaQuickProfile,
		Schema:     quickProfileSchema(),
	}, &out)
	if err != nil {
		return err
	}
	st.ext = extraction.Normalize(analysis.Extraction{PersonalInfo: out.PersonalInfo})
	st.ext.PersonalInfo.Source = analysis.SourceExtracted
	for _, s := range out.CriteriaSummary {
		id, err := criteria.Parse(s.Criterion)
		if err != nil {
			continue
		}
		st.results = analysis.ReplaceResult(st.results, analysis.CriterionResult{
			Criterion:   id,
			Strength:    criteria.ParseStrength(s.Strength),
			Reason:      s.Rationale,
			Evidence:    []string{},
			KeyEvidence: []string{},
		})
	}
	return nil
}

func (p *Pipeline) extractCriterion(ctx context.Context, resume string, def criteria.Criterion, st *analyzeState, prior *analysis.Analysis) (analysis.CriterionResult, error) {
	req := openai.Request{
		System: promptCriterionExtract,
		Context: map[string]any{
			"criterion": map[string]any{"id": def.ID, "title": def.Title, "categories": def.Categories},
			"resume":    resume,
		},
		SchemaName: SchemaCriterionExtract,
		Schema:     criterionExtractSchema(def.Categories),
	}
	if def.SearchEnabled && p.deps.Search != nil {
		req.Tools = []openai.Tool{p.deps.Search.Tool()}
		req.MaxToolSteps = evaluation.SearchToolSteps
	}
	var out criterionOut
	if err := p.deps.Gen.Generate(ctx, req, &out); err != nil {
		return analysis.CriterionResult{}, err
	}

	evidence := make([]string, 0, len(out.Items))
	for _, it := range out.Items {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		addItem(&st.ext, def, it)
		evidence = append(evidence, it.Title)
	}
	st.ext = extraction.Normalize(st.ext)

	res := analysis.CriterionResult{
		Criterion:   def.ID,
		Strength:    criteria.ParseStrength(out.Strength),
		Reason:      out.Rationale,
		Evidence:    evidence,
		KeyEvidence: nonNil(out.KeyEvidence),
	}
	if prior != nil {
		if old, ok := analysis.FindResult(prior.Criteria.Data(), def.ID); ok {
			res.UserContext = old.UserContext
		}
	}
	st.results = analysis.ReplaceResult(st.results, res)
	st.completed = append(st.completed, def.ID)
	return res, nil
}

// addItem files it under its category (or the criterion's first category
// when the generator picked one outside the criterion). An item already on
// file under the same title gains the criterion instead of being duplicated.
func addItem(ext *analysis.Extraction, def criteria.Criterion, it analysis.EvidenceItem) {
	category := it.Category
	if !contains(def.Categories, category) && len(def.Categories) > 0 {
		category = def.Categories[0]
	}
	list := ext.Category(category)
	if list == nil {
		return
	}
	for i := range *list {
		existing := &(*list)[i]
		if strings.EqualFold(strings.TrimSpace(existing.Title), strings.TrimSpace(it.Title)) {
			if !containsID(existing.MappedCriteria, def.ID) {
				existing.MappedCriteria = append(existing.MappedCriteria, def.ID)
			}
			return
		}
	}
	it.ID = ""
	it.Category = category
	it.Source = analysis.SourceExtracted
	it.MappedCriteria = []criteria.ID{def.ID}
	*list = append(*list, it)
}

// summaryFrom carries the verdicts into the extraction's criteria summary.
func summaryFrom(results []analysis.CriterionResult, prev []analysis.CriterionSummary) []analysis.CriterionSummary {
	out := make([]analysis.CriterionSummary, 0, len(results))
	for _, r := range results {
		s := analysis.CriterionSummary{Criterion: r.Criterion, Strength: r.Strength, Rationale: r.Reason}
		for _, p := range prev {
			if p.Criterion == r.Criterion && s.Rationale == "" {
				s.Rationale = p.Rationale
			}
		}
		out = append(out, s)
	}
	return out
}

func surveyAnswers(profile *cases.CaseProfile) (map[string]any, error) {
	if profile == nil || len(profile.Data) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(profile.Data, &out); err != nil {
		return nil, fmt.Errorf("decode survey: %w", err)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []criteria.ID, id criteria.ID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
