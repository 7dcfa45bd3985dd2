package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paperdesk/paperdesk-backend/internal/model"
)

// ErrCandidateNotFound is returned when no candidate matches the lookup.
var ErrCandidateNotFound = errors.New("candidate not found")

// CandidateRepository handles persistence of candidate accounts.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

// GetByEmail retrieves a candidate by email for login.
func (r *CandidateRepository) GetByEmail(ctx context.Context, email string) (*model.Candidate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, faculty_track, semester, created_at
		 FROM candidates WHERE email = $1`,
		email,
	)
	return scanCandidate(row)
}

// GetByID retrieves a candidate by primary key.
func (r *CandidateRepository) GetByID(ctx context.Context, id int) (*model.Candidate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, faculty_track, semester, created_at
		 FROM candidates WHERE id = $1`,
		id,
	)
	return scanCandidate(row)
}

// Create inserts a new candidate account.
func (r *CandidateRepository) Create(ctx context.Context, c *model.Candidate) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO candidates (name, email, password_hash, faculty_track, semester)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		c.Name, c.Email, c.PasswordHash, c.FacultyTrack, c.Semester,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

func scanCandidate(row pgx.Row) (*model.Candidate, error) {
	var c model.Candidate
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.FacultyTrack, &c.Semester, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCandidateNotFound
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &c, nil
}
