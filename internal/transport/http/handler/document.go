package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docindex/internal/app"
	"docindex/internal/model"
	"docindex/internal/transport/http/response"
)

const maxPDFSize = 20 << 20 // 20 MB

type DocumentHandler struct {
	ingestService   *app.IngestService
	documentService *app.DocumentService
}

func NewDocumentHandler(ingestService *app.IngestService, documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		ingestService:   ingestService,
		documentService: documentService,
	}
}

// Upload accepts a multipart form with "file" (PDF) plus optional
// "title", "collection", "shared" and "overwrite" fields, and ingests
// the document into the caller's scope.
func (h *DocumentHandler) Upload(c *gin.Context) {
	id, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 20MB)")
		return
	}
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
		if title == "" {
			title = "Untitled"
		}
	}

	shared := parseBoolForm(c, "shared")
	scope, err := id.scopeFor(strings.TrimSpace(c.PostForm("collection")), shared)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid owner scope")
		return
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), app.IngestInput{
		Scope:     scope,
		Title:     title,
		Data:      data,
		Overwrite: parseBoolForm(c, "overwrite"),
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidScope):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, model.ErrParse):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, model.ErrDuplicateDocument):
			response.Error(c, http.StatusConflict, response.CodeDuplicateDocument, err.Error())
		case errors.Is(err, model.ErrIngestInProgress):
			response.Error(c, http.StatusConflict, response.CodeIngestInProgress, err.Error())
		case errors.Is(err, model.ErrEmbeddingService):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
		}
		return
	}

	response.OK(c, gin.H{
		"document_id":        result.DocumentID,
		"pages":              result.Pages,
		"fragments_created":  result.FragmentsCreated,
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	id, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	scope, err := id.scopeFor("", false)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid owner scope")
		return
	}

	docs, err := h.documentService.List(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

// Audit returns the tenant's recent document lifecycle history. The
// "limit" query parameter caps the row count.
func (h *DocumentHandler) Audit(c *gin.Context) {
	id, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	scope, err := id.scopeFor("", false)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid owner scope")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.documentService.AuditTrail(c.Request.Context(), scope, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list audit trail failed")
		return
	}
	response.OK(c, rows)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	documentID := strings.TrimSpace(c.Param("id"))
	if documentID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	shared := parseBoolQuery(c, "shared")
	scope, err := id.scopeFor(strings.TrimSpace(c.Query("collection")), shared)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid owner scope")
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), scope, documentID); err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		case errors.Is(err, model.ErrValidation):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": documentID})
}

func parseBoolForm(c *gin.Context, key string) bool {
	v := strings.TrimSpace(c.PostForm(key))
	return v == "1" || strings.EqualFold(v, "true")
}

func parseBoolQuery(c *gin.Context, key string) bool {
	v := strings.TrimSpace(c.Query(key))
	return v == "1" || strings.EqualFold(v, "true")
}
