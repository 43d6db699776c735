package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/modules/extraction"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

// SurveyPatch is a partial survey update. Data is deep-merged into the
// stored answers; nil fields are left alone.
type SurveyPatch struct {
	Data            map[string]any      `json:"data"`
	SkippedSections *[]string           `json:"skipped_sections"`
	IntakeStatus    *cases.IntakeStatus `json:"intake_status"`
}

func (p SurveyPatch) Validate() error {
	if p.IntakeStatus != nil && !p.IntakeStatus.Valid() {
		return fmt.Errorf("%w: intake_status %q", ErrInvalidInput, *p.IntakeStatus)
	}
	if p.Data == nil && p.SkippedSections == nil && p.IntakeStatus == nil {
		return fmt.Errorf("%w: empty patch", ErrInvalidInput)
	}
	if err := extraction.CheckSurvey(p.Data); err != nil {
		return fmt.Errorf("%w: survey data: %v", ErrInvalidInput, err)
	}
	return nil
}

type SurveyResult struct {
	Profile *cases.CaseProfile `json:"profile"`
	// AnalysisVersion is the analysis version re-derived from the new
	// answers, or 0 when the case has not been analyzed yet.
	AnalysisVersion int `json:"analysis_version"`
}

type SurveyService interface {
	Get(ctx context.Context, caseID uuid.UUID) (*cases.CaseProfile, error)
	Patch(ctx context.Context, caseID uuid.UUID, patch SurveyPatch) (*SurveyResult, error)
}

type surveyService struct {
	db       *gorm.DB
	log      *logger.Logger
	profiles repos.CaseProfileRepo
	analyses repos.AnalysisRepo
}

func NewSurveyService(db *gorm.DB, baseLog *logger.Logger, profiles repos.CaseProfileRepo, analyses repos.AnalysisRepo) SurveyService {
	return &surveyService{
		db:       db,
		log:      baseLog.With("service", "SurveyService"),
		profiles: profiles,
		analyses: analyses,
	}
}

func emptyProfile(caseID uuid.UUID) *cases.CaseProfile {
	return &cases.CaseProfile{
		CaseID:          caseID,
		Data:            datatypes.JSON(`{}`),
		SkippedSections: datatypes.NewJSONType([]string{}),
		IntakeStatus:    cases.IntakeNotStarted,
	}
}

// Get returns the stored survey, or an empty NOT_STARTED one.
func (s *surveyService) Get(ctx context.Context, caseID uuid.UUID) (*cases.CaseProfile, error) {
	p, err := s.profiles.GetByCaseID(dbctx.From(ctx), caseID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return emptyProfile(caseID), nil
	}
	return p, nil
}

// Patch deep-merges the answers, bumps the profile version and, when the
// case already has an analysis, appends a new analysis version whose
// extraction carries the merged answers.
func (s *surveyService) Patch(ctx context.Context, caseID uuid.UUID, patch SurveyPatch) (*SurveyResult, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	out := &SurveyResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := s.profiles.GetByCaseID(dbc, caseID)
		if err != nil {
			return err
		}
		if p == nil {
			p = emptyProfile(caseID)
		}
		current := map[string]any{}
		if len(p.Data) > 0 {
			if err := json.Unmarshal(p.Data, &current); err != nil {
				return fmt.Errorf("decode stored survey: %w", err)
			}
		}
		merged := extraction.DeepMerge(current, patch.Data)
		if err := extraction.CheckSurvey(merged); err != nil {
			return fmt.Errorf("%w: survey data: %v", ErrInvalidInput, err)
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode survey: %w", err)
		}
		p.Data = datatypes.JSON(raw)
		p.Version++
		if patch.SkippedSections != nil {
			p.SkippedSections = datatypes.NewJSONType(dedupe(*patch.SkippedSections))
		}
		switch {
		case patch.IntakeStatus != nil:
			p.IntakeStatus = *patch.IntakeStatus
		case p.IntakeStatus == cases.IntakeNotStarted || p.IntakeStatus == "":
			p.IntakeStatus = cases.IntakeInProgress
		}
		if err := s.profiles.Save(dbc, p); err != nil {
			return fmt.Errorf("save survey: %w", err)
		}
		out.Profile = p

		if len(patch.Data) == 0 {
			return nil
		}
		latest, err := s.analyses.Latest(dbc, caseID)
		if err != nil || latest == nil {
			return err
		}
		ext, err := extraction.Merge(latest.Extraction.Data(), merged)
		if err != nil {
			return fmt.Errorf("merge survey into extraction: %w", err)
		}
		next, err := s.analyses.Append(dbc, &analysis.Analysis{
			CaseID:     caseID,
			Extraction: datatypes.NewJSONType(ext),
			Criteria:   datatypes.NewJSONType(analysis.NormalizeResults(latest.Criteria.Data())),
		})
		if err != nil {
			return fmt.Errorf("append analysis: %w", err)
		}
		out.AnalysisVersion = next.Version
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Survey updated", "case_id", caseID, "version", out.Profile.Version, "analysis_version", out.AnalysisVersion)
	return out, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
