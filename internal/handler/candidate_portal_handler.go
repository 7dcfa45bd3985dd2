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
	"github.com/paperdesk/paperdesk-backend/internal/session"
	"github.com/paperdesk/paperdesk-backend/internal/validator"
)

// CandidatePortalHandler handles the candidate-facing surface: lobby,
// attempts, and results.
type CandidatePortalHandler struct {
	catalogService *service.CatalogService
	attemptService *service.AttemptService
}

// NewCandidatePortalHandler creates a new CandidatePortalHandler.
func NewCandidatePortalHandler(catalogService *service.CatalogService, attemptService *service.AttemptService) *CandidatePortalHandler {
	return &CandidatePortalHandler{
		catalogService: catalogService,
		attemptService: attemptService,
	}
}

// GetLobby godoc
// GET /api/v1/portal/lobby
// Returns the candidate's papers bucketed into available / attempted / expired.
func (h *CandidatePortalHandler) GetLobby(c *gin.Context) {
	profile := middleware.GetClaims(c).Profile()

	buckets, err := h.catalogService.GetLobby(c.Request.Context(), profile)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, buckets)
}

// GetResults godoc
// GET /api/v1/portal/results
// Returns the candidate's published results.
func (h *CandidatePortalHandler) GetResults(c *gin.Context) {
	profile := middleware.GetClaims(c).Profile()

	results, err := h.catalogService.GetResults(c.Request.Context(), profile)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// BeginAttempt godoc
// POST /api/v1/portal/papers/:code/attempt
// Starts (or resumes) the candidate's attempt on a paper.
func (h *CandidatePortalHandler) BeginAttempt(c *gin.Context) {
	profile := middleware.GetClaims(c).Profile()
	paperCode := c.Param("code")

	state, err := h.attemptService.Begin(c.Request.Context(), profile, paperCode)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetAttemptState godoc
// GET /api/v1/portal/papers/:code/attempt
// Returns the live attempt state, recovering it after a reload or restart.
func (h *CandidatePortalHandler) GetAttemptState(c *gin.Context) {
	profile := middleware.GetClaims(c).Profile()
	paperCode := c.Param("code")

	state, err := h.attemptService.GetState(c.Request.Context(), profile, paperCode)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// RecordAnswer godoc
// PUT /api/v1/portal/papers/:code/attempt/answer
// Records one answer mid-attempt. The WebSocket stream is the primary path;
// this REST twin covers clients without a socket.
func (h *CandidatePortalHandler) RecordAnswer(c *gin.Context) {
	profile := middleware.GetClaims(c).Profile()
	paperCode := c.Param("code")

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.RecordAnswer(c.Request.Context(), profile, paperCode, *req.Ordinal, req.Option, req.Text); err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SubmitAttempt godoc
// POST /api/v1/portal/papers/:code/attempt/submit
// Commits the attempt. Safe to retry after a store outage.
func (h *CandidatePortalHandler) SubmitAttempt(c *gin.Context) {
	profile := middleware.GetClaims(c).Profile()
	paperCode := c.Param("code")

	if err := h.attemptService.Submit(c.Request.Context(), profile, paperCode); err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// failAttempt maps attempt lifecycle errors onto the response envelope.
func failAttempt(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPaperNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrPaperNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrPaperNotAvailable)
	case errors.Is(err, service.ErrNoActiveAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, session.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, session.ErrBadOrdinal):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, session.ErrStoreUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
