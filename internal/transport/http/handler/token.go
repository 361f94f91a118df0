package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docindex/internal/app"
	"docindex/internal/model"
	"docindex/internal/transport/http/response"
)

type TokenHandler struct {
	tokenService *app.TokenService
}

type TokenRequest struct {
	DocumentURL    string `json:"document_url" binding:"required"`
	ExpiresSeconds int    `json:"expires_seconds" binding:"required"`
}

func NewTokenHandler(tokenService *app.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

func (h *TokenHandler) Issue(c *gin.Context) {
	id, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	scope, err := id.scopeFor("", false)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid owner scope")
		return
	}

	token, err := h.tokenService.Issue(c.Request.Context(), app.TokenInput{
		Scope:          scope,
		DocumentURL:    req.DocumentURL,
		ExpiresSeconds: req.ExpiresSeconds,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, "issue access token failed: "+err.Error())
		}
		return
	}

	response.OK(c, token)
}
