package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("another session is already active, please contact an administrator to reset it")
)

// TokenType distinguishes candidate vs instructor tokens.
type TokenType string

const (
	TokenTypeCandidate  TokenType = "candidate"
	TokenTypeInstructor TokenType = "instructor"
)

// Claims extends JWT standard claims with app-specific fields. Candidate
// tokens carry the eligibility profile so downstream handlers can build a
// CandidateProfile without a database round trip.
type Claims struct {
	jwt.RegisteredClaims
	TokenType    TokenType `json:"token_type"`
	UserID       int       `json:"user_id"`
	Name         string    `json:"name,omitempty"`
	FacultyTrack string    `json:"faculty_track,omitempty"` // Candidate only
	Semester     string    `json:"semester,omitempty"`      // Candidate only
	IsAdmin      bool      `json:"is_admin,omitempty"`      // Instructor only
}

// Profile rebuilds the candidate eligibility profile from the claims.
func (c *Claims) Profile() model.CandidateProfile {
	return model.CandidateProfile{
		ID:           c.UserID,
		Name:         c.Name,
		FacultyTrack: c.FacultyTrack,
		Semester:     c.Semester,
	}
}

// AuthService handles authentication, JWT, and login sessions.
type AuthService struct {
	cfg         *config.Config
	rdb         *redis.Client
	candidates  *repository.CandidateRepository
	instructors *repository.InstructorRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, candidates *repository.CandidateRepository, instructors *repository.InstructorRepository) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, candidates: candidates, instructors: instructors}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// LoginCandidate verifies credentials and issues a candidate token. A
// candidate may hold one live session at a time: a second login while the
// first is active is rejected.
func (s *AuthService) LoginCandidate(ctx context.Context, email, password string) (string, *model.Candidate, error) {
	candidate, err := s.candidates.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrCandidateNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.CheckPassword(candidate.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.generateCandidateToken(ctx, candidate)
	if err != nil {
		return "", nil, err
	}
	return token, candidate, nil
}

// LoginInstructor verifies credentials and issues an instructor token.
func (s *AuthService) LoginInstructor(ctx context.Context, email, password string) (string, *model.Instructor, error) {
	instructor, err := s.instructors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrInstructorNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.CheckPassword(instructor.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.generateInstructorToken(instructor)
	if err != nil {
		return "", nil, err
	}
	return token, instructor, nil
}

func (s *AuthService) generateCandidateToken(ctx context.Context, candidate *model.Candidate) (string, error) {
	loginKey := config.CacheKey.CandidateLoginKey(candidate.ID)

	existing, err := s.rdb.Get(ctx, loginKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("check login: %w", err)
	}
	if existing != "" {
		return "", ErrSessionAlreadyActive
	}

	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(candidate.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:    TokenTypeCandidate,
		UserID:       candidate.ID,
		Name:         candidate.Name,
		FacultyTrack: candidate.FacultyTrack,
		Semester:     candidate.Semester,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	// Login marker shares the JWT expiry.
	if err := s.rdb.Set(ctx, loginKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store login: %w", err)
	}

	return signed, nil
}

func (s *AuthService) generateInstructorToken(instructor *model.Instructor) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(instructor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeInstructor,
		UserID:    instructor.ID,
		Name:      instructor.Name,
		IsAdmin:   instructor.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateCandidateLogin checks that the token's JTI matches the active
// login marker in Redis.
func (s *AuthService) ValidateCandidateLogin(ctx context.Context, candidateID int, jti string) error {
	loginKey := config.CacheKey.CandidateLoginKey(candidateID)
	stored, err := s.rdb.Get(ctx, loginKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.New("no active login")
		}
		return fmt.Errorf("check login: %w", err)
	}
	if stored != jti {
		return errors.New("login invalidated")
	}
	return nil
}

// ResetCandidateLogin removes a candidate's login marker, allowing a new login.
func (s *AuthService) ResetCandidateLogin(ctx context.Context, candidateID int) error {
	loginKey := config.CacheKey.CandidateLoginKey(candidateID)
	return s.rdb.Del(ctx, loginKey).Err()
}
