package analysis

import (
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

// Source tags where a value came from.
type Source string

const (
	SourceExtracted Source = "extracted"
	SourceSurvey    Source = "survey"
)

// Evidence categories, in the order they appear in an Extraction.
const (
	CategoryPublications          = "publications"
	CategoryAwards                = "awards"
	CategoryPatents               = "patents"
	CategoryMemberships           = "memberships"
	CategoryMediaCoverage         = "media_coverage"
	CategoryJudgingActivities     = "judging_activities"
	CategorySpeakingEngagements   = "speaking_engagements"
	CategoryGrants                = "grants"
	CategoryLeadershipRoles       = "leadership_roles"
	CategoryCompensation          = "compensation"
	CategoryExhibitions           = "exhibitions"
	CategoryCommercialSuccess     = "commercial_success"
	CategoryOriginalContributions = "original_contributions"
)

var categoryNames = []string{
	CategoryPublications,
	CategoryAwards,
	CategoryPatents,
	CategoryMemberships,
	CategoryMediaCoverage,
	CategoryJudgingActivities,
	CategorySpeakingEngagements,
	CategoryGrants,
	CategoryLeadershipRoles,
	CategoryCompensation,
	CategoryExhibitions,
	CategoryCommercialSuccess,
	CategoryOriginalContributions,
}

func CategoryNames() []string {
	out := make([]string, len(categoryNames))
	copy(out, categoryNames)
	return out
}

func ValidCategory(name string) bool {
	for _, c := range categoryNames {
		if c == name {
			return true
		}
	}
	return false
}

type PersonalInfo struct {
	FullName        string `json:"full_name"`
	CurrentTitle    string `json:"current_title,omitempty"`
	CurrentEmployer string `json:"current_employer,omitempty"`
	Field           string `json:"field,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	YearsExperience int    `json:"years_experience,omitempty"`
	Source          Source `json:"source,omitempty"`
}

// EvidenceItem is one fact from the applicant's record. The common fields are
// shared by every category; the category-specific fields are only populated
// for the categories that use them (see Category).
type EvidenceItem struct {
	ID             string        `json:"id,omitempty"`
	Category       string        `json:"category,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Organization   string        `json:"organization,omitempty"`
	Date           string        `json:"date,omitempty"`
	URL            string        `json:"url,omitempty"`
	Source         Source        `json:"source,omitempty"`
	MappedCriteria []criteria.ID `json:"mapped_criteria"`

	// publications
	Venue     string `json:"venue,omitempty"`
	Citations int    `json:"citations,omitempty"`
	DOI       string `json:"doi,omitempty"`

	// grants, compensation, commercial_success
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`

	// leadership_roles, memberships, judging_activities
	Role string `json:"role,omitempty"`
}

type CriterionSummary struct {
	Criterion     criteria.ID       `json:"criterion"`
	Strength      criteria.Strength `json:"strength"`
	Rationale     string            `json:"rationale,omitempty"`
	EvidenceCount int               `json:"evidence_count"`
}

// Extraction is the structured evidence record built from the resume and
// the survey.
type Extraction struct {
	PersonalInfo          PersonalInfo       `json:"personal_info"`
	Publications          []EvidenceItem     `json:"publications"`
	Awards                []EvidenceItem     `json:"awards"`
	Patents               []EvidenceItem     `json:"patents"`
	Memberships           []EvidenceItem     `json:"memberships"`
	MediaCoverage         []EvidenceItem     `json:"media_coverage"`
	JudgingActivities     []EvidenceItem     `json:"judging_activities"`
	SpeakingEngagements   []EvidenceItem     `json:"speaking_engagements"`
	Grants                []EvidenceItem     `json:"grants"`
	LeadershipRoles       []EvidenceItem     `json:"leadership_roles"`
	Compensation          []EvidenceItem     `json:"compensation"`
	Exhibitions           []EvidenceItem     `json:"exhibitions"`
	CommercialSuccess     []EvidenceItem     `json:"commercial_success"`
	OriginalContributions []EvidenceItem     `json:"original_contributions"`
	CriteriaSummary       []CriterionSummary `json:"criteria_summary"`
}

// Category returns a pointer to the named list, or nil for unknown names.
func (e *Extraction) Category(name string) *[]EvidenceItem {
	switch name {
	case CategoryPublications:
		return &e.Publications
	case CategoryAwards:
		return &e.Awards
	case CategoryPatents:
		return &e.Patents
	case CategoryMemberships:
		return &e.Memberships
	case CategoryMediaCoverage:
		return &e.MediaCoverage
	case CategoryJudgingActivities:
		return &e.JudgingActivities
	case CategorySpeakingEngagements:
		return &e.SpeakingEngagements
	case CategoryGrants:
		return &e.Grants
	case CategoryLeadershipRoles:
		return &e.LeadershipRoles
	case CategoryCompensation:
		return &e.Compensation
	case CategoryExhibitions:
		return &e.Exhibitions
	case CategoryCommercialSuccess:
		return &e.CommercialSuccess
	case CategoryOriginalContributions:
		return &e.OriginalContributions
	}
	return nil
}

// Each calls fn for every category list in order.
func (e *Extraction) Each(fn func(category string, items *[]EvidenceItem)) {
	for _, name := range categoryNames {
		fn(name, e.Category(name))
	}
}

// ItemsFor returns every item mapped to the criterion.
func (e *Extraction) ItemsFor(id criteria.ID) []EvidenceItem {
	var out []EvidenceItem
	e.Each(func(_ string, items *[]EvidenceItem) {
		for _, it := range *items {
			for _, c := range it.MappedCriteria {
				if c == id {
					out = append(out, it)
					break
				}
			}
		}
	})
	return out
}

// Summary returns the summary entry for the criterion, if present.
func (e *Extraction) Summary(id criteria.ID) (CriterionSummary, bool) {
	for _, s := range e.CriteriaSummary {
		if s.Criterion == id {
			return s, true
		}
	}
	return CriterionSummary{}, false
}
