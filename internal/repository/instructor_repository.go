package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paperdesk/paperdesk-backend/internal/model"
)

// ErrInstructorNotFound is returned when no instructor matches the lookup.
var ErrInstructorNotFound = errors.New("instructor not found")

// InstructorRepository handles persistence of instructor and admin accounts.
type InstructorRepository struct {
	pool *pgxpool.Pool
}

// NewInstructorRepository creates a new InstructorRepository.
func NewInstructorRepository(pool *pgxpool.Pool) *InstructorRepository {
	return &InstructorRepository{pool: pool}
}

// GetByEmail retrieves an instructor by email for login.
func (r *InstructorRepository) GetByEmail(ctx context.Context, email string) (*model.Instructor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at
		 FROM instructors WHERE email = $1`,
		email,
	)
	return scanInstructor(row)
}

// GetByID retrieves an instructor by primary key.
func (r *InstructorRepository) GetByID(ctx context.Context, id int) (*model.Instructor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at
		 FROM instructors WHERE id = $1`,
		id,
	)
	return scanInstructor(row)
}

// Create inserts a new instructor account.
func (r *InstructorRepository) Create(ctx context.Context, ins *model.Instructor) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO instructors (name, email, password_hash, is_admin)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ins.Name, ins.Email, ins.PasswordHash, ins.IsAdmin,
	).Scan(&ins.ID, &ins.CreatedAt)
	if err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

func scanInstructor(row pgx.Row) (*model.Instructor, error) {
	var ins model.Instructor
	err := row.Scan(&ins.ID, &ins.Name, &ins.Email, &ins.PasswordHash, &ins.IsAdmin, &ins.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstructorNotFound
		}
		return nil, fmt.Errorf("get instructor: %w", err)
	}
	return &ins, nil
}
