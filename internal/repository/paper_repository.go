package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paperdesk/paperdesk-backend/internal/model"
)

// ErrPaperNotFound is returned when no paper matches the given code.
var ErrPaperNotFound = errors.New("paper not found")

// PaperRepository is the catalog of exam papers and their questions.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// GetByCode retrieves one paper with its questions, or ErrPaperNotFound.
func (r *PaperRepository) GetByCode(ctx context.Context, code string) (*model.Paper, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT code, title, instructor_id, faculty_track, semester,
		        scheduled_start, duration_minutes, status, created_at, updated_at
		 FROM papers WHERE code = $1`,
		code,
	)

	var p model.Paper
	err := row.Scan(
		&p.Code, &p.Title, &p.InstructorID, &p.FacultyTrack, &p.Semester,
		&p.ScheduledStart, &p.DurationMinutes, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	questions, err := r.questionsByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	p.Questions = questions
	return &p, nil
}

// ListPublished retrieves all published papers matching the candidate's
// eligibility, questions excluded. The classifier buckets these.
func (r *PaperRepository) ListPublished(ctx context.Context, facultyTrack, semester string) ([]model.Paper, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, title, instructor_id, faculty_track, semester,
		        scheduled_start, duration_minutes, status, created_at, updated_at
		 FROM papers
		 WHERE status = $1 AND faculty_track = $2 AND semester = $3
		 ORDER BY scheduled_start ASC`,
		model.PaperStatusPublished, facultyTrack, semester,
	)
	if err != nil {
		return nil, fmt.Errorf("list published papers: %w", err)
	}
	defer rows.Close()

	return collectPapers(rows)
}

// ListByInstructor retrieves all papers authored by one instructor.
func (r *PaperRepository) ListByInstructor(ctx context.Context, instructorID int) ([]model.Paper, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, title, instructor_id, faculty_track, semester,
		        scheduled_start, duration_minutes, status, created_at, updated_at
		 FROM papers
		 WHERE instructor_id = $1
		 ORDER BY created_at DESC`,
		instructorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list papers by instructor: %w", err)
	}
	defer rows.Close()

	return collectPapers(rows)
}

// ListPublishedCodes retrieves the codes of every published paper, used to
// prewarm the payload cache on boot.
func (r *PaperRepository) ListPublishedCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code FROM papers WHERE status = $1`, model.PaperStatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list published codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Create inserts a new draft paper without questions.
func (r *PaperRepository) Create(ctx context.Context, p *model.Paper) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO papers (code, title, instructor_id, faculty_track, semester,
		                     scheduled_start, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		p.Code, p.Title, p.InstructorID, p.FacultyTrack, p.Semester,
		p.ScheduledStart, p.DurationMinutes, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create paper: %w", err)
	}
	return nil
}

// Update rewrites the mutable header fields of a paper.
func (r *PaperRepository) Update(ctx context.Context, p *model.Paper) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE papers
		 SET title = $2, faculty_track = $3, semester = $4,
		     scheduled_start = $5, duration_minutes = $6, updated_at = NOW()
		 WHERE code = $1`,
		p.Code, p.Title, p.FacultyTrack, p.Semester, p.ScheduledStart, p.DurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("update paper: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaperNotFound
	}
	return nil
}

// UpdateStatus moves a paper between DRAFT and PUBLISHED.
func (r *PaperRepository) UpdateStatus(ctx context.Context, code string, status model.PaperStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE papers SET status = $2, updated_at = NOW() WHERE code = $1`,
		code, status,
	)
	if err != nil {
		return fmt.Errorf("update paper status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaperNotFound
	}
	return nil
}

// Delete removes a draft paper and its questions.
func (r *PaperRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM papers WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete paper: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaperNotFound
	}
	return nil
}

// ReplaceQuestions swaps the full question list of a paper in one
// transaction, renumbering ordinals from zero.
func (r *PaperRepository) ReplaceQuestions(ctx context.Context, code string, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE paper_code = $1`, code); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	for i, q := range questions {
		var options []byte
		if len(q.Options) > 0 {
			options, err = json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("marshal options: %w", err)
			}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (paper_code, ordinal, prompt, kind, options, correct_option)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			code, i, q.Prompt, q.Kind, options, nullIfEmpty(q.CorrectOption),
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE papers SET updated_at = NOW() WHERE code = $1`, code); err != nil {
		return fmt.Errorf("touch paper: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PaperRepository) questionsByCode(ctx context.Context, code string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ordinal, prompt, kind, options, correct_option
		 FROM questions WHERE paper_code = $1
		 ORDER BY ordinal ASC`,
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q       model.Question
			options []byte
			correct *string
		)
		if err := rows.Scan(&q.Ordinal, &q.Prompt, &q.Kind, &options, &correct); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options: %w", err)
			}
		}
		if correct != nil {
			q.CorrectOption = *correct
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func collectPapers(rows pgx.Rows) ([]model.Paper, error) {
	var papers []model.Paper
	for rows.Next() {
		var p model.Paper
		err := rows.Scan(
			&p.Code, &p.Title, &p.InstructorID, &p.FacultyTrack, &p.Semester,
			&p.ScheduledStart, &p.DurationMinutes, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
