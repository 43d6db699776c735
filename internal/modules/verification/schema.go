package verification

const (
	SchemaName = "evidence_verification"

	systemPrompt = `You verify whether one exhibit document substantiates one EB-1A criterion.
Score the document from 0 to 10 for this criterion only, list the claims the document actually
verifies, any red flags, and the ids of the applicant's evidence items the document supports.
Recommend STRONG, INCLUDE_WITH_SUPPORT, WEAK, INSUFFICIENT or EXCLUDE.`
)

func verificationSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"score", "recommendation", "summary", "verified_claims", "red_flags", "matched_item_ids"},
		"properties": map[string]any{
			"score": map[string]any{"type": "number", "minimum": 0, "maximum": 10},
			"recommendation": map[string]any{
				"type": "string",
				"enum": []string{"STRONG", "INCLUDE_WITH_SUPPORT", "WEAK", "INSUFFICIENT", "EXCLUDE"},
			},
			"summary":          map[string]any{"type": "string"},
			"verified_claims":  stringList,
			"red_flags":        stringList,
			"matched_item_ids": stringList,
		},
	}
}

type generated struct {
	Score          float64  `json:"score"`
	Recommendation string   `json:"recommendation"`
	Summary        string   `json:"summary"`
	VerifiedClaims []string `json:"verified_claims"`
	RedFlags       []string `json:"red_flags"`
	MatchedItemIDs []string `json:"matched_item_ids"`
}
