package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/modules/extraction"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

const (
	// ResumeTextLimit bounds the resume text sent with every evaluation.
	ResumeTextLimit = 12000
	// SearchToolSteps caps scholarly search rounds for the search-enabled criterion.
	SearchToolSteps = 5
)

var (
	ErrInvalidCriterion = errors.New("invalid criterion")
	ErrInvalidRemoval   = errors.New("invalid evidence removal")
	ErrEvidenceNotFound = errors.New("evidence not found")
)

// ToolSource supplies a generator tool, e.g. the scholarly search client.
type ToolSource interface {
	Tool() openai.Tool
}

type Deps struct {
	Log       *logger.Logger
	Gen       openai.Generator
	Search    ToolSource
	Analyses  repos.AnalysisRepo
	Documents repos.DocumentRepo
}

type Service struct {
	log       *logger.Logger
	gen       openai.Generator
	search    ToolSource
	analyses  repos.AnalysisRepo
	documents repos.DocumentRepo
}

func New(deps Deps) *Service {
	return &Service{
		log:       deps.Log.With("service", "CriterionEvaluation"),
		gen:       deps.Gen,
		search:    deps.Search,
		analyses:  deps.Analyses,
		documents: deps.Documents,
	}
}

type Input struct {
	Context  string `json:"context"`
	FileText string `json:"file_text"`
}

// Result is the verdict for one criterion plus the analysis version it was
// stored in.
type Result struct {
	Criterion   criteria.ID       `json:"criterion"`
	Strength    criteria.Strength `json:"strength"`
	Reason      string            `json:"reason"`
	Evidence    []string          `json:"evidence"`
	KeyEvidence []string          `json:"key_evidence"`
	StrongCount int               `json:"strong_count"`
	WeakCount   int               `json:"weak_count"`
	Version     int               `json:"version"`
}

type evalContext struct {
	Criterion       criteria.ID `json:"criterion"`
	CriterionTitle  string      `json:"criterion_title"`
	ResumeText      string      `json:"resume_text,omitempty"`
	PriorEvidence   []string    `json:"prior_evidence"`
	ExtractionItems []itemBrief `json:"extraction_items"`
	UserContext     []string    `json:"user_context,omitempty"`
	NewContext      string      `json:"new_context,omitempty"`
	FileText        string      `json:"file_text,omitempty"`
	RemovedEvidence bool        `json:"removed_evidence,omitempty"`
}

type itemBrief struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Citations   int    `json:"citations,omitempty"`
}

// Evaluate recomputes one criterion from everything known about it and stores
// the verdict as a new analysis version. Nothing is stored when the generator
// fails.
func (s *Service) Evaluate(ctx context.Context, caseID uuid.UUID, id criteria.ID, in Input) (*Result, error) {
	crit, ok := criteria.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCriterion, id)
	}
	dbc := dbctx.From(ctx)

	latest, err := s.analyses.Latest(dbc, caseID)
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	ext, results := current(latest)
	prior, _ := analysis.FindResult(results, id)

	docs, err := s.documents.ListByCase(dbc, caseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	userContext := append([]string{}, prior.UserContext...)
	if c := strings.TrimSpace(in.Context); c != "" {
		userContext = append(userContext, c)
	}

	payload := evalContext{
		Criterion:       id,
		CriterionTitle:  crit.Title,
		ResumeText:      ResumeText(docs, ResumeTextLimit),
		PriorEvidence:   dedupe(append(append([]string{}, prior.KeyEvidence...), prior.Evidence...)),
		ExtractionItems: briefs(ext.ItemsFor(id)),
		UserContext:     prior.UserContext,
		NewContext:      strings.TrimSpace(in.Context),
		FileText:        Truncate(strings.TrimSpace(in.FileText), ResumeTextLimit),
	}

	out, err := s.generate(ctx, id, systemPrompt, payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := analysis.CriterionResult{
		Criterion:   id,
		Strength:    criteria.ParseStrength(out.Strength),
		Reason:      strings.TrimSpace(out.Reason),
		Evidence:    dedupe(out.Evidence),
		KeyEvidence: dedupe(out.KeyEvidence),
		UserContext: userContext,
		EvaluatedAt: &now,
	}
	return s.store(dbc, caseID, ext, analysis.ReplaceResult(results, next), next)
}

// RemovalSource names where the evidence being removed lives.
type RemovalSource string

const (
	RemoveKeyEvidence RemovalSource = "key_evidence"
	RemoveEvidence    RemovalSource = "evidence"
	RemoveExtraction  RemovalSource = "extraction"
)

type RemoveInput struct {
	Index    int           `json:"index"`
	Source   RemovalSource `json:"source"`
	Category string        `json:"category,omitempty"`
}

func (in RemoveInput) Validate() error {
	if in.Index < 0 {
		return fmt.Errorf("%w: negative index", ErrInvalidRemoval)
	}
	switch in.Source {
	case RemoveKeyEvidence, RemoveEvidence:
		return nil
	case RemoveExtraction:
		if !analysis.ValidCategory(in.Category) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidRemoval, in.Category)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown source %q", ErrInvalidRemoval, in.Source)
}

// RemoveEvidence drops one piece of evidence and re-evaluates the criterion
// from what remains. The removed text never reappears in the stored verdict.
func (s *Service) RemoveEvidence(ctx context.Context, caseID uuid.UUID, id criteria.ID, in RemoveInput) (*Result, error) {
	crit, ok := criteria.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCriterion, id)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	dbc := dbctx.From(ctx)

	latest, err := s.analyses.Latest(dbc, caseID)
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	if latest == nil {
		return nil, ErrEvidenceNotFound
	}
	ext, results := current(latest)
	prior, _ := analysis.FindResult(results, id)

	var removed []string
	switch in.Source {
	case RemoveKeyEvidence:
		if in.Index >= len(prior.KeyEvidence) {
			return nil, ErrEvidenceNotFound
		}
		removed = []string{prior.KeyEvidence[in.Index]}
		prior.KeyEvidence = removeAt(prior.KeyEvidence, in.Index)
	case RemoveEvidence:
		if in.Index >= len(prior.Evidence) {
			return nil, ErrEvidenceNotFound
		}
		removed = []string{prior.Evidence[in.Index]}
		prior.Evidence = removeAt(prior.Evidence, in.Index)
	case RemoveExtraction:
		items := ext.Category(in.Category)
		if in.Index >= len(*items) {
			return nil, ErrEvidenceNotFound
		}
		it := (*items)[in.Index]
		removed = nonEmpty(it.Title, it.Description)
		*items = append(append([]analysis.EvidenceItem{}, (*items)[:in.Index]...), (*items)[in.Index+1:]...)
	}
	unmapRemoved(&ext, id, removed)
	ext = extraction.Normalize(ext)
	prior.KeyEvidence = without(prior.KeyEvidence, removed)
	prior.Evidence = without(prior.Evidence, removed)

	payload := evalContext{
		Criterion:       id,
		CriterionTitle:  crit.Title,
		PriorEvidence:   dedupe(append(append([]string{}, prior.KeyEvidence...), prior.Evidence...)),
		ExtractionItems: briefs(ext.ItemsFor(id)),
		UserContext:     prior.UserContext,
		RemovedEvidence: true,
	}

	out, err := s.generate(ctx, id, removalPrompt, payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := analysis.CriterionResult{
		Criterion:   id,
		Strength:    criteria.ParseStrength(out.Strength),
		Reason:      strings.TrimSpace(out.Reason),
		Evidence:    without(dedupe(out.Evidence), removed),
		KeyEvidence: without(dedupe(out.KeyEvidence), removed),
		UserContext: prior.UserContext,
		EvaluatedAt: &now,
	}
	return s.store(dbc, caseID, ext, analysis.ReplaceResult(results, next), next)
}

func (s *Service) generate(ctx context.Context, id criteria.ID, system string, payload evalContext) (*generated, error) {
	req := openai.Request{
		System:     system,
		Context:    payload,
		SchemaName: SchemaName,
		Schema:     evaluationSchema(),
	}
	if id == criteria.SearchCriterion() && s.search != nil {
		req.Tools = []openai.Tool{s.search.Tool()}
		req.MaxToolSteps = SearchToolSteps
	}

	start := time.Now()
	var out generated
	if err := s.gen.Generate(ctx, req, &out); err != nil {
		observability.Current().ObserveStage("evaluation", string(id), "error", time.Since(start))
		s.log.Warn("Criterion evaluation failed", "criterion", id, "error", err)
		return nil, fmt.Errorf("evaluate %s: %w", id, err)
	}
	observability.Current().ObserveStage("evaluation", string(id), "ok", time.Since(start))
	return &out, nil
}

func (s *Service) store(dbc dbctx.Context, caseID uuid.UUID, ext analysis.Extraction, results []analysis.CriterionResult, next analysis.CriterionResult) (*Result, error) {
	row := &analysis.Analysis{
		CaseID:     caseID,
		Extraction: datatypes.NewJSONType(ext),
		Criteria:   datatypes.NewJSONType(results),
	}
	saved, err := s.analyses.Append(dbc, row)
	if err != nil {
		return nil, fmt.Errorf("append analysis: %w", err)
	}
	return &Result{
		Criterion:   next.Criterion,
		Strength:    next.Strength,
		Reason:      next.Reason,
		Evidence:    next.Evidence,
		KeyEvidence: next.KeyEvidence,
		StrongCount: saved.StrongCount,
		WeakCount:   saved.WeakCount,
		Version:     saved.Version,
	}, nil
}

func current(latest *analysis.Analysis) (analysis.Extraction, []analysis.CriterionResult) {
	if latest == nil {
		return extraction.Normalize(analysis.Extraction{}), analysis.EmptyResults()
	}
	return latest.Extraction.Data(), analysis.NormalizeResults(latest.Criteria.Data())
}

// ResumeText returns the text of the case's resume documents, truncated to
// limit runes. Cases without a categorized resume fall back to the first
// user-uploaded document that has text.
func ResumeText(docs []*documents.Document, limit int) string {
	var parts []string
	for _, d := range docs {
		if d.Category == documents.CategoryResume && strings.TrimSpace(d.Text()) != "" {
			parts = append(parts, d.Text())
		}
	}
	if len(parts) == 0 {
		for _, d := range docs {
			if d.Source == documents.SourceUserUploaded && strings.TrimSpace(d.Text()) != "" {
				parts = append(parts, d.Text())
				break
			}
		}
	}
	return Truncate(strings.Join(parts, "\n\n"), limit)
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

func briefs(items []analysis.EvidenceItem) []itemBrief {
	out := make([]itemBrief, 0, len(items))
	for _, it := range items {
		out = append(out, itemBrief{
			ID: it.ID, Category: it.Category, Title: it.Title, Description: it.Description,
			Venue: it.Venue, Citations: it.Citations,
		})
	}
	return out
}

func removeAt(in []string, i int) []string {
	out := make([]string, 0, len(in))
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}

func norm(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }

// evidenceKey is the identity used when removing evidence: the normalized
// text with parenthesized qualifiers such as a year dropped.
func evidenceKey(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Trim(norm(b.String()), " .,;:-")
}

func isRemoved(s string, removed []string) bool {
	k := evidenceKey(s)
	if k == "" {
		return false
	}
	for _, r := range removed {
		if evidenceKey(r) == k {
			return true
		}
	}
	return false
}

// without drops entries that name removed evidence.
func without(in []string, removed []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !isRemoved(s, removed) {
			out = append(out, s)
		}
	}
	return out
}

// unmapRemoved takes the criterion off every extraction item named by the
// removed evidence. Items mapped to nothing else are dropped.
func unmapRemoved(ext *analysis.Extraction, id criteria.ID, removed []string) {
	ext.Each(func(_ string, items *[]analysis.EvidenceItem) {
		kept := make([]analysis.EvidenceItem, 0, len(*items))
		for _, it := range *items {
			named := isRemoved(it.ID, removed) || isRemoved(it.Title, removed) || isRemoved(it.Description, removed)
			if !named || !mapsTo(it, id) {
				kept = append(kept, it)
				continue
			}
			rest := make([]criteria.ID, 0, len(it.MappedCriteria))
			for _, c := range it.MappedCriteria {
				if c != id {
					rest = append(rest, c)
				}
			}
			if len(rest) == 0 {
				continue
			}
			it.MappedCriteria = rest
			kept = append(kept, it)
		}
		*items = kept
	})
}

func mapsTo(it analysis.EvidenceItem, id criteria.ID) bool {
	for _, c := range it.MappedCriteria {
		if c == id {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[norm(s)] {
			continue
		}
		seen[norm(s)] = true
		out = append(out, s)
	}
	return out
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
