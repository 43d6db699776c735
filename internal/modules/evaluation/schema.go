package evaluation

const (
	SchemaName = "criterion_evaluation"

	systemPrompt = `You evaluate one EB-1A extraordinary ability criterion for an applicant.
Use only the evidence supplied in the context. Answer "Strong" when the evidence would meet the
USCIS standard for the criterion, "Weak" when evidence exists but is insufficient, and "None" when
there is no relevant evidence. List the specific evidence you relied on.`

	removalPrompt = `You re-evaluate one EB-1A extraordinary ability criterion after the applicant removed a piece
of evidence. Judge strength only from the evidence listed in the context; evidence that is not listed
no longer exists. Answer "Strong", "Weak" or "None" and list the evidence you relied on.`
)

func evaluationSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"strength", "reason", "evidence", "key_evidence"},
		"properties": map[string]any{
			"strength":     map[string]any{"type": "string", "enum": []string{"Strong", "Weak", "None"}},
			"reason":       map[string]any{"type": "string"},
			"evidence":     stringList,
			"key_evidence": stringList,
		},
	}
}

type generated struct {
	Strength    string   `json:"strength"`
	Reason      string   `json:"reason"`
	Evidence    []string `json:"evidence"`
	KeyEvidence []string `json:"key_evidence"`
}
