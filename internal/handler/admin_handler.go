package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/response"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/paperdesk/paperdesk-backend/internal/validator"
)

// AdminHandler handles account management endpoints, admin only.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{accountService: accountService}
}

// CreateCandidate godoc
// POST /api/v1/admin/candidates
func (h *AdminHandler) CreateCandidate(c *gin.Context) {
	var req model.CreateCandidateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	candidate, err := h.accountService.CreateCandidate(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"candidate": candidate})
}

// CreateInstructorRequest is the payload for registering an instructor.
type CreateInstructorRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateInstructor godoc
// POST /api/v1/admin/instructors
func (h *AdminHandler) CreateInstructor(c *gin.Context) {
	var req CreateInstructorRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	instructor, err := h.accountService.CreateInstructor(c.Request.Context(), req.Name, req.Email, req.Password, req.IsAdmin)
	if err != nil {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"instructor": instructor})
}

// ResetCandidateLogin godoc
// DELETE /api/v1/admin/candidates/:id/login
// Clears a stuck single-device login so the candidate can sign in again.
func (h *AdminHandler) ResetCandidateLogin(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.accountService.ResetCandidateLogin(c.Request.Context(), candidateID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
