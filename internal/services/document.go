package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/docext"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

// UploadInput is one uploaded exhibit. Data holds the raw file for multipart
// uploads; JSON uploads send Text instead.
type UploadInput struct {
	Name     string
	MimeType string
	Data     []byte
	Text     string
	Category string
	Source   documents.Source
}

func (in *UploadInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if in.Source == "" {
		in.Source = documents.SourceUserUploaded
	}
	if !in.Source.Valid() {
		return fmt.Errorf("%w: source %q", ErrInvalidInput, in.Source)
	}
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))
	if in.Category != "" && !documents.ValidCategory(in.Category) {
		return fmt.Errorf("%w: category %q", ErrInvalidInput, in.Category)
	}
	if len(in.Data) == 0 && strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: file or text required", ErrInvalidInput)
	}
	return nil
}

// DocumentPatch is an explicit edit. Status may move either way here;
// Finalize is the one-way path.
type DocumentPatch struct {
	Name        *string           `json:"name"`
	Category    *string           `json:"category"`
	Status      *documents.Status `json:"status"`
	TextContent *string           `json:"text_content"`
}

func (p *DocumentPatch) updates() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		out["name"] = name
	}
	if p.Category != nil {
		c := strings.ToUpper(strings.TrimSpace(*p.Category))
		if !documents.ValidCategory(c) {
			return nil, fmt.Errorf("%w: category %q", ErrInvalidInput, *p.Category)
		}
		out["category"] = c
		out["classification_confidence"] = nil
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, *p.Status)
		}
		out["status"] = *p.Status
	}
	if p.TextContent != nil {
		out["text_content"] = *p.TextContent
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty patch", ErrInvalidInput)
	}
	return out, nil
}

type DocumentService interface {
	Upload(ctx context.Context, caseID uuid.UUID, in UploadInput) (*documents.Document, error)
	List(ctx context.Context, caseID uuid.UUID) ([]*documents.Document, error)
	Get(ctx context.Context, caseID, id uuid.UUID) (*documents.Document, error)
	Edit(ctx context.Context, caseID, id uuid.UUID, patch DocumentPatch) (*documents.Document, error)
	Finalize(ctx context.Context, caseID, id uuid.UUID) (*documents.Document, error)
}

type documentService struct {
	log        *logger.Logger
	documents  repos.DocumentRepo
	classifier DocumentClassifier
}

// NewDocumentService builds the document service. classifier may be nil, in
// which case uploads without a category stay OTHER.
func NewDocumentService(baseLog *logger.Logger, documentRepo repos.DocumentRepo, classifier DocumentClassifier) DocumentService {
	return &documentService{
		log:        baseLog.With("service", "DocumentService"),
		documents:  documentRepo,
		classifier: classifier,
	}
}

// Upload stores the exhibit as a DRAFT. Text extraction and classification
// are best effort: failures are logged and the document is stored anyway.
func (s *documentService) Upload(ctx context.Context, caseID uuid.UUID, in UploadInput) (*documents.Document, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	doc := &documents.Document{
		CaseID:    caseID,
		Name:      in.Name,
		Type:      documents.TypeFromName(in.Name, in.MimeType),
		Source:    in.Source,
		Status:    documents.StatusDraft,
		Category:  in.Category,
		MimeType:  in.MimeType,
		SizeBytes: int64(len(in.Data)),
	}
	text := strings.TrimSpace(in.Text)
	if len(in.Data) > 0 {
		extracted, typ, err := docext.Extract(in.Name, in.MimeType, in.Data)
		if typ != "" {
			doc.Type = typ
		}
		switch {
		case err == nil:
			text = extracted
		case errors.Is(err, docext.ErrUnsupported):
			s.log.Debug("No text layer", "case_id", caseID, "name", in.Name, "error", err)
		default:
			s.log.Warn("Text extraction failed", "case_id", caseID, "name", in.Name, "error", err)
		}
	} else {
		doc.SizeBytes = int64(len(in.Text))
	}
	if text != "" {
		doc.TextContent = &text
	}

	if doc.Category == "" {
		doc.Category = documents.CategoryOther
		if s.classifier != nil && text != "" {
			c, err := s.classifier.Classify(ctx, doc.Name, text)
			if err != nil {
				s.log.Warn("Classification failed", "case_id", caseID, "name", in.Name, "error", err)
			} else {
				doc.Category = c.Category
				conf := c.Confidence
				doc.ClassificationConfidence = &conf
			}
		}
	}

	created, err := s.documents.Create(dbctx.From(ctx), doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.log.Info("Document uploaded", "case_id", caseID, "document_id", created.ID, "type", created.Type, "category", created.Category)
	return created, nil
}

func (s *documentService) List(ctx context.Context, caseID uuid.UUID) ([]*documents.Document, error) {
	return s.documents.ListByCase(dbctx.From(ctx), caseID)
}

func (s *documentService) Get(ctx context.Context, caseID, id uuid.UUID) (*documents.Document, error) {
	d, err := s.documents.GetByID(dbctx.From(ctx), caseID, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDocumentNotFound
	}
	return d, nil
}

func (s *documentService) Edit(ctx context.Context, caseID, id uuid.UUID, patch DocumentPatch) (*documents.Document, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, caseID, id); err != nil {
		return nil, err
	}
	if err := s.documents.UpdateFields(dbctx.From(ctx), id, updates); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return s.Get(ctx, caseID, id)
}

// Finalize moves a DRAFT to FINAL. Finalizing a FINAL document is a no-op.
func (s *documentService) Finalize(ctx context.Context, caseID, id uuid.UUID) (*documents.Document, error) {
	d, err := s.Get(ctx, caseID, id)
	if err != nil {
		return nil, err
	}
	if !d.Finalize() {
		return d, nil
	}
	if err := s.documents.UpdateFields(dbctx.From(ctx), id, map[string]interface{}{"status": d.Status}); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}
	s.log.Info("Document finalized", "case_id", caseID, "document_id", id)
	return d, nil
}
