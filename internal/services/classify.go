package services

import (
	"context"
	"strings"

	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

const (
	ClassificationSchemaName = "document_classification"
	classifyTextLimit        = 6000
)

const classifyPrompt = `Classify the uploaded exhibit of an EB-1A petition into exactly one category and give
your confidence between 0 and 1.`

// Classification is the exhibit category a document most likely belongs to.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

type DocumentClassifier interface {
	Classify(ctx context.Context, name, text string) (*Classification, error)
}

type documentClassifier struct {
	log *logger.Logger
	gen openai.Generator
}

func NewDocumentClassifier(baseLog *logger.Logger, gen openai.Generator) DocumentClassifier {
	return &documentClassifier{log: baseLog.With("service", "DocumentClassifier"), gen: gen}
}

func (c *documentClassifier) Classify(ctx context.Context, name, text string) (*Classification, error) {
	text = evaluation.Truncate(text, classifyTextLimit)
	var out Classification
	err := c.gen.Generate(ctx, openai.Request{
		System:     classifyPrompt,
		Context:    map[string]any{"name": name, "text": text},
		SchemaName: ClassificationSchemaName,
		Schema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"category", "confidence"},
			"properties": map[string]any{
				"category":   map[string]any{"type": "string", "enum": documents.Categories()},
				"confidence": map[string]any{"type": "number"},
			},
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	out.Category = strings.ToUpper(strings.TrimSpace(out.Category))
	if !documents.ValidCategory(out.Category) {
		out.Category = documents.CategoryOther
	}
	switch {
	case out.Confidence < 0:
		out.Confidence = 0
	case out.Confidence > 1:
		out.Confidence = 1
	}
	return &out, nil
}
