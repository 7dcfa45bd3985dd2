package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/paperdesk-backend/internal/middleware"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/paperdesk/paperdesk-backend/internal/response"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/paperdesk/paperdesk-backend/internal/validator"
)

// GradingHandler handles instructor review and result publication endpoints.
type GradingHandler struct {
	gradingService *service.GradingService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

// reviewerID maps the authenticated staff claims to the ownership filter the
// grading service applies. Admins review any paper, signalled by zero.
func reviewerID(claims *service.Claims) int {
	if claims.IsAdmin {
		return 0
	}
	return claims.UserID
}

// ListSheets godoc
// GET /api/v1/staff/papers/:code/sheets
// Returns a scored review sheet for every submitted attempt on the paper.
func (h *GradingHandler) ListSheets(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sheets, err := h.gradingService.ListSheets(c.Request.Context(), reviewerID(claims), c.Param("code"))
	if err != nil {
		failGrading(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sheets": sheets})
}

// GetSheet godoc
// GET /api/v1/staff/papers/:code/sheets/:candidate_id
func (h *GradingHandler) GetSheet(c *gin.Context) {
	claims := middleware.GetClaims(c)

	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	sheet, err := h.gradingService.GetSheet(c.Request.Context(), reviewerID(claims), c.Param("code"), candidateID)
	if err != nil {
		failGrading(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sheet": sheet})
}

// StageVerdict godoc
// PUT /api/v1/staff/papers/:code/sheets/:candidate_id/verdict
// Stages a manual verdict on one free-text answer and returns the rescored sheet.
func (h *GradingHandler) StageVerdict(c *gin.Context) {
	claims := middleware.GetClaims(c)

	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var req model.StageVerdictRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sheet, err := h.gradingService.StageVerdict(
		c.Request.Context(), reviewerID(claims), c.Param("code"),
		candidateID, *req.Ordinal, model.Verdict(req.Verdict),
	)
	if err != nil {
		failGrading(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sheet": sheet})
}

// PublishResult godoc
// POST /api/v1/staff/papers/:code/sheets/:candidate_id/publish
// Freezes the current score into a published result.
func (h *GradingHandler) PublishResult(c *gin.Context) {
	claims := middleware.GetClaims(c)

	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	result, err := h.gradingService.Publish(c.Request.Context(), reviewerID(claims), c.Param("code"), candidateID)
	if err != nil {
		failGrading(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// failGrading maps grading errors onto the response envelope.
func failGrading(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPaperNotFound), errors.Is(err, repository.ErrNoRecord):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotPaperOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotPaperOwner)
	case errors.Is(err, service.ErrPaperNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrPaperNotPublished)
	case errors.Is(err, service.ErrNotSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrNotSubmitted)
	case errors.Is(err, service.ErrAlreadyPublished):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyPublished)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
