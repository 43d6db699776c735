package documents

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypePDF      Type = "PDF"
	TypeDOCX     Type = "DOCX"
	TypeMarkdown Type = "MARKDOWN"
	TypeImage    Type = "IMAGE"
)

func (t Type) Valid() bool {
	switch t {
	case TypePDF, TypeDOCX, TypeMarkdown, TypeImage:
		return true
	}
	return false
}

// TypeFromName infers a document type from a file name or mime type.
func TypeFromName(name, mime string) Type {
	n := strings.ToLower(name)
	m := strings.ToLower(mime)
	switch {
	case strings.HasSuffix(n, ".pdf") || m == "application/pdf":
		return TypePDF
	case strings.HasSuffix(n, ".docx") || strings.Contains(m, "wordprocessingml"):
		return TypeDOCX
	case strings.HasSuffix(n, ".md") || strings.HasSuffix(n, ".markdown") || m == "text/markdown":
		return TypeMarkdown
	case strings.HasPrefix(m, "image/"), strings.HasSuffix(n, ".png"), strings.HasSuffix(n, ".jpg"), strings.HasSuffix(n, ".jpeg"):
		return TypeImage
	}
	return TypeMarkdown
}

type Source string

const (
	SourceUserUploaded    Source = "USER_UPLOADED"
	SourceSystemGenerated Source = "SYSTEM_GENERATED"
)

func (s Source) Valid() bool { return s == SourceUserUploaded || s == SourceSystemGenerated }

type Status string

const (
	StatusDraft Status = "DRAFT"
	StatusFinal Status = "FINAL"
)

func (s Status) Valid() bool { return s == StatusDraft || s == StatusFinal }

// Exhibit categories.
const (
	CategoryResume               = "RESUME"
	CategoryAward                = "AWARD"
	CategoryMembership           = "MEMBERSHIP"
	CategoryMedia                = "MEDIA"
	CategoryJudging              = "JUDGING"
	CategoryContribution         = "CONTRIBUTION"
	CategoryPublication          = "PUBLICATION"
	CategoryExhibition           = "EXHIBITION"
	CategoryLeadership           = "LEADERSHIP"
	CategoryCompensation         = "COMPENSATION"
	CategoryCommercial           = "COMMERCIAL"
	CategoryRecommendationLetter = "RECOMMENDATION_LETTER"
	CategoryPetitionLetter       = "PETITION_LETTER"
	CategoryOther                = "OTHER"
)

var categories = []string{
	CategoryResume, CategoryAward, CategoryMembership, CategoryMedia, CategoryJudging,
	CategoryContribution, CategoryPublication, CategoryExhibition, CategoryLeadership,
	CategoryCompensation, CategoryCommercial, CategoryRecommendationLetter,
	CategoryPetitionLetter, CategoryOther,
}

func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

func ValidCategory(c string) bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

type Document struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID                   uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Name                     string    `gorm:"column:name;not null" json:"name"`
	Type                     Type      `gorm:"column:type;not null" json:"type"`
	Source                   Source    `gorm:"column:source;not null;index" json:"source"`
	Status                   Status    `gorm:"column:status;not null" json:"status"`
	Category                 string    `gorm:"column:category;not null;index" json:"category"`
	ClassificationConfidence *float64  `gorm:"column:classification_confidence" json:"classification_confidence,omitempty"`
	MimeType                 string    `gorm:"column:mime_type" json:"mime_type,omitempty"`
	SizeBytes                int64     `gorm:"column:size_bytes" json:"size_bytes"`
	TextContent              *string   `gorm:"column:text_content;type:text" json:"text_content,omitempty"`
	CreatedAt                time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt                time.Time `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "document" }

// Finalize moves DRAFT to FINAL. It reports false if the document was already final.
func (d *Document) Finalize() bool {
	if d.Status == StatusFinal {
		return false
	}
	d.Status = StatusFinal
	return true
}

func (d *Document) Text() string {
	if d == nil || d.TextContent == nil {
		return ""
	}
	return *d.TextContent
}
