package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docindex/internal/app"
	"docindex/internal/model"
	"docindex/internal/transport/http/response"
)

type QueryHandler struct {
	queryService *app.QueryService
}

type QueryRequest struct {
	Question   string `json:"question" binding:"required"`
	TopK       int    `json:"top_k"`
	DocumentID string `json:"document_id"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

func (h *QueryHandler) Query(c *gin.Context) {
	id, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	scope, err := id.scopeFor("", false)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid owner scope")
		return
	}

	result, err := h.queryService.Query(c.Request.Context(), app.QueryInput{
		Scope:      scope,
		Question:   req.Question,
		TopK:       req.TopK,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, model.ErrEmbeddingService):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, err.Error())
		case errors.Is(err, model.ErrIndexRead):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query failed")
		}
		return
	}

	response.OK(c, gin.H{
		"answer_context":     result.Context,
		"sources":            result.Sources,
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
	})
}
