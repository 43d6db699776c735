package pipeline

import (
	"sort"

	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

const (
	SchemaQuickProfile       = "quick_profile"
	SchemaCriterionExtract   = "criterion_extraction"
	SchemaGapAnalysis        = "gap_analysis"
	SchemaDenialQualitative  = "denial_qualitative"
	SchemaDenialQuantitative = "denial_quantitative"
	SchemaConsolidation      = "consolidation_narrative"
)

const (
	promptQuickProfile = `Read the applicant's resume and return their personal information and a first,
coarse strength estimate for each of the ten EB-1A criteria. Be fast; detail comes later.`

	promptCriterionExtract = `Extract every fact from the resume that supports the named EB-1A criterion. Use only
the listed categories. Then rate the criterion Strong, Weak or None and explain why.`

	promptGapAnalysis = `Compare the applicant's criterion verdicts with the exhibits routed to each criterion.
For every criterion state whether it is MET, PARTIAL or MISSING, what evidence is missing, and what
the applicant should gather next. End with the highest priority actions for the whole petition.`

	promptDenialQualitative = `Assess the denial risk of this EB-1A petition qualitatively. Identify per-criterion
risks, likely RFE triggers and recommendations, and give an overall denial probability estimate.`

	promptDenialQuantitative = `Quantify the denial probability of this EB-1A petition. Start from a base rate,
list each adjustment with its signed delta in percentage points, and give the final denial
probability. Use the qualitative assessment and evidence inventory provided.`

	promptConsolidation = `Write a short strategy narrative for the petition given the criterion classification.
PRIMARY criteria lead the petition, BACKUP criteria support it, EXCLUDED criteria are omitted.`
)

// object builds a strict JSON schema object: every property required and no
// extras allowed.
func object(props map[string]any) map[string]any {
	req := make([]string, 0, len(props))
	for k := range props {
		req = append(req, k)
	}
	sort.Strings(req)
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             req,
		"properties":           props,
	}
}

func str() map[string]any                      { return map[string]any{"type": "string"} }
func num() map[string]any                      { return map[string]any{"type": "number"} }
func integer() map[string]any                  { return map[string]any{"type": "integer"} }
func list(items map[string]any) map[string]any { return map[string]any{"type": "array", "items": items} }
func enum(vals ...string) map[string]any       { return map[string]any{"type": "string", "enum": vals} }

func criterionIDs() []string {
	out := make([]string, 0, criteria.Count)
	for _, id := range criteria.IDs() {
		out = append(out, string(id))
	}
	return out
}

func strengthEnum() map[string]any {
	return enum(string(criteria.StrengthStrong), string(criteria.StrengthWeak), string(criteria.StrengthNone))
}

func riskEnum() map[string]any { return enum("VERY_HIGH", "HIGH", "MEDIUM", "LOW") }

func personalInfoSchema() map[string]any {
	return object(map[string]any{
		"full_name":        str(),
		"current_title":    str(),
		"current_employer": str(),
		"field":            str(),
		"nationality":      str(),
		"years_experience": integer(),
	})
}

func quickProfileSchema() map[string]any {
	return object(map[string]any{
		"personal_info": personalInfoSchema(),
		"criteria_summary": list(object(map[string]any{
			"criterion": enum(criterionIDs()...),
			"strength":  strengthEnum(),
			"rationale": str(),
		})),
	})
}

func criterionExtractSchema(categories []string) map[string]any {
	if len(categories) == 0 {
		categories = analysis.CategoryNames()
	}
	return object(map[string]any{
		"items": list(object(map[string]any{
			"category":     enum(categories...),
			"title":        str(),
			"description":  str(),
			"organization": str(),
			"date":         str(),
			"url":          str(),
			"venue":        str(),
			"citations":    integer(),
			"doi":          str(),
			"amount":       num(),
			"currency":     str(),
			"role":         str(),
		})),
		"strength":     strengthEnum(),
		"rationale":    str(),
		"key_evidence": list(str()),
	})
}

func gapSchema() map[string]any {
	return object(map[string]any{
		"summary": str(),
		"criteria": list(object(map[string]any{
			"criterion":       enum(criterionIDs()...),
			"status":          enum("MET", "PARTIAL", "MISSING"),
			"gaps":            list(str()),
			"recommendations": list(str()),
		})),
		"priority_actions": list(str()),
	})
}

func denialQualitativeSchema() map[string]any {
	return object(map[string]any{
		"overall_assessment": object(map[string]any{
			"denial_probability_pct": num(),
			"risk_level":             riskEnum(),
			"summary":                str(),
		}),
		"criterion_risks": list(object(map[string]any{
			"criterion": enum(criterionIDs()...),
			"risk":      riskEnum(),
			"issues":    list(str()),
		})),
		"rfe_triggers":    list(str()),
		"recommendations": list(str()),
	})
}

func denialQuantitativeSchema() map[string]any {
	return object(map[string]any{
		"base_rate": num(),
		"adjustments": list(object(map[string]any{
			"factor": str(),
			"delta":  num(),
		})),
		"final_denial_probability": map[string]any{"type": []string{"number", "null"}},
		"methodology":              str(),
	})
}

func consolidationSchema() map[string]any {
	return object(map[string]any{"narrative": str()})
}
