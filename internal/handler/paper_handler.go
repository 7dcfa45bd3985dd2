package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/paperdesk-backend/internal/middleware"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/paperdesk/paperdesk-backend/internal/response"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/paperdesk/paperdesk-backend/internal/validator"
)

// PaperHandler handles instructor-side paper authoring endpoints.
type PaperHandler struct {
	paperService *service.PaperService
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(paperService *service.PaperService) *PaperHandler {
	return &PaperHandler{paperService: paperService}
}

// ListPapers godoc
// GET /api/v1/staff/papers
func (h *PaperHandler) ListPapers(c *gin.Context) {
	claims := middleware.GetClaims(c)

	papers, err := h.paperService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"papers": papers})
}

// GetPaper godoc
// GET /api/v1/staff/papers/:code
func (h *PaperHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	paper, err := h.paperService.Get(c.Request.Context(), claims.UserID, c.Param("code"))
	if err != nil {
		failPaper(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// CreatePaper godoc
// POST /api/v1/staff/papers
func (h *PaperHandler) CreatePaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreatePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"paper": paper})
}

// UpdatePaper godoc
// PUT /api/v1/staff/papers/:code
func (h *PaperHandler) UpdatePaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.UpdatePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.Update(c.Request.Context(), claims.UserID, c.Param("code"), &req)
	if err != nil {
		failPaper(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// DeletePaper godoc
// DELETE /api/v1/staff/papers/:code
func (h *PaperHandler) DeletePaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.paperService.Delete(c.Request.Context(), claims.UserID, c.Param("code")); err != nil {
		failPaper(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ReplaceQuestions godoc
// PUT /api/v1/staff/papers/:code/questions
func (h *PaperHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.ReplaceQuestions(c.Request.Context(), claims.UserID, c.Param("code"), &req)
	if err != nil {
		failPaper(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// PublishPaper godoc
// POST /api/v1/staff/papers/:code/publish
func (h *PaperHandler) PublishPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	paper, err := h.paperService.Publish(c.Request.Context(), claims.UserID, c.Param("code"))
	if err != nil {
		failPaper(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// failPaper maps paper authoring errors onto the response envelope.
func failPaper(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPaperNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotPaperOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotPaperOwner)
	case errors.Is(err, service.ErrPaperNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrPaperNotDraft)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrValidation)
	}
}
