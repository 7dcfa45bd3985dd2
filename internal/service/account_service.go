package service

import (
	"context"

	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/rs/zerolog"
)

// AccountService handles admin-side account management.
type AccountService struct {
	auth        *AuthService
	candidates  *repository.CandidateRepository
	instructors *repository.InstructorRepository
	logger      zerolog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(auth *AuthService, candidates *repository.CandidateRepository, instructors *repository.InstructorRepository, logger zerolog.Logger) *AccountService {
	return &AccountService{
		auth:        auth,
		candidates:  candidates,
		instructors: instructors,
		logger:      logger.With().Str("component", "account_service").Logger(),
	}
}

// CreateCandidate registers a candidate account with a hashed password.
func (s *AccountService) CreateCandidate(ctx context.Context, req *model.CreateCandidateRequest) (*model.Candidate, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	candidate := &model.Candidate{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		FacultyTrack: req.FacultyTrack,
		Semester:     req.Semester,
	}
	if err := s.candidates.Create(ctx, candidate); err != nil {
		return nil, err
	}

	s.logger.Info().Int("candidate", candidate.ID).Str("email", candidate.Email).Msg("candidate created")
	return candidate, nil
}

// CreateInstructor registers an instructor account with a hashed password.
func (s *AccountService) CreateInstructor(ctx context.Context, name, email, password string, isAdmin bool) (*model.Instructor, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	instructor := &model.Instructor{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.instructors.Create(ctx, instructor); err != nil {
		return nil, err
	}

	s.logger.Info().Int("instructor", instructor.ID).Str("email", instructor.Email).Msg("instructor created")
	return instructor, nil
}

// ResetCandidateLogin clears a stuck candidate login so they can sign in again.
func (s *AccountService) ResetCandidateLogin(ctx context.Context, candidateID int) error {
	return s.auth.ResetCandidateLogin(ctx, candidateID)
}
