package handlers

import (
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/modules/verification"
	"github.com/yungbote/caseforge-backend/internal/platform/apierr"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/services"
)

const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	log      *logger.Logger
	cases    services.CaseService
	docs     services.DocumentService
	verifier *verification.Service
}

func NewDocumentHandler(log *logger.Logger, caseService services.CaseService, docService services.DocumentService, verifier *verification.Service) *DocumentHandler {
	return &DocumentHandler{
		log:      log.With("handler", "DocumentHandler"),
		cases:    caseService,
		docs:     docService,
		verifier: verifier,
	}
}

type uploadJSON struct {
	Name     string           `json:"name"`
	MimeType string           `json:"mime_type"`
	Text     string           `json:"text"`
	Category string           `json:"category"`
	Source   documents.Source `json:"source"`
}

// POST /cases/:caseId/documents
// multipart: files=<file>... [category] [source]; or JSON uploadJSON.
func (h *DocumentHandler) Upload(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, true)
	if !ok {
		return
	}

	var inputs []services.UploadInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
			response.RespondAPIError(c, apierr.BadRequest("invalid_multipart_form", err))
			return
		}
		form := c.Request.MultipartForm
		files := append(append([]*multipart.FileHeader{}, form.File["files"]...), form.File["file"]...)
		if len(files) == 0 {
			response.RespondAPIError(c, apierr.BadRequest("no_files", nil))
			return
		}
		for _, fh := range files {
			data, err := readPart(fh)
			if err != nil {
				response.RespondAPIError(c, apierr.BadRequest("invalid_file", err))
				return
			}
			inputs = append(inputs, services.UploadInput{
				Name:     fh.Filename,
				MimeType: fh.Header.Get("Content-Type"),
				Data:     data,
				Category: c.PostForm("category"),
				Source:   documents.Source(strings.ToUpper(c.PostForm("source"))),
			})
		}
	} else {
		var req uploadJSON
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
			return
		}
		inputs = append(inputs, services.UploadInput{
			Name:     req.Name,
			MimeType: req.MimeType,
			Text:     req.Text,
			Category: req.Category,
			Source:   req.Source,
		})
	}

	out := make([]*documents.Document, 0, len(inputs))
	for _, in := range inputs {
		doc, err := h.docs.Upload(c.Request.Context(), cs.ID, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		out = append(out, doc)
	}
	response.RespondCreated(c, gin.H{"documents": out})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

// GET /cases/:caseId/documents
func (h *DocumentHandler) List(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	docs, err := h.docs.List(c.Request.Context(), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"documents": docs})
}

// PATCH /cases/:caseId/documents/:documentId
func (h *DocumentHandler) Edit(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	docID, ok := parseID(c, "documentId", "invalid_document_id")
	if !ok {
		return
	}
	var req services.DocumentPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	doc, err := h.docs.Edit(c.Request.Context(), cs.ID, docID, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// POST /cases/:caseId/documents/:documentId/finalize
func (h *DocumentHandler) Finalize(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	docID, ok := parseID(c, "documentId", "invalid_document_id")
	if !ok {
		return
	}
	doc, err := h.docs.Finalize(c.Request.Context(), cs.ID, docID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// GET /cases/:caseId/documents/:documentId/verifications
func (h *DocumentHandler) Verifications(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	docID, ok := parseID(c, "documentId", "invalid_document_id")
	if !ok {
		return
	}
	if _, err := h.docs.Get(c.Request.Context(), cs.ID, docID); err != nil {
		respondErr(c, err)
		return
	}
	latest, err := h.verifier.Latest(c.Request.Context(), docID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"verifications": latest})
}
