package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/paperdesk-backend/internal/middleware"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/response"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/paperdesk/paperdesk-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// CandidateLogin godoc
// POST /api/v1/auth/candidate/login
// Validates email + password, checks for an existing login (rejects if active), returns JWT.
func (h *AuthHandler) CandidateLogin(c *gin.Context) {
	var req model.CandidateLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, candidate, err := h.authService.LoginCandidate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		case errors.Is(err, service.ErrSessionAlreadyActive):
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":     token,
		"candidate": candidate.Profile(),
	})
}

// InstructorLogin godoc
// POST /api/v1/auth/instructor/login
// Validates email + password, returns JWT.
func (h *AuthHandler) InstructorLogin(c *gin.Context) {
	var req model.InstructorLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, instructor, err := h.authService.LoginInstructor(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"instructor": gin.H{
			"id":       instructor.ID,
			"email":    instructor.Email,
			"name":     instructor.Name,
			"is_admin": instructor.IsAdmin,
		},
	})
}

// CandidateProfile godoc
// GET /api/v1/auth/candidate/me
// Returns the profile of the currently authenticated candidate.
func (h *AuthHandler) CandidateProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"candidate": claims.Profile()})
}

// CandidateLogout godoc
// POST /api/v1/auth/candidate/logout
// Releases the candidate's single-device login marker.
func (h *AuthHandler) CandidateLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.ResetCandidateLogin(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
