package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paperdesk/paperdesk-backend/internal/model"
)

// ErrNoRecord is returned when no attempt record exists for the key.
var ErrNoRecord = errors.New("attempt record not found")

// AttemptRepository is the durable attempt store, keyed by
// (paper code, candidate id). The three lifecycle writes (start, submit,
// publish) are conditional so that each is applied at most once even when
// a network failure forces the caller to retry.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// StartAttempt records the start timestamp, creating the record if needed.
// The start is set-once: if a previous call already committed one, that
// original timestamp is returned untouched.
func (r *AttemptRepository) StartAttempt(ctx context.Context, paperCode string, candidateID int, startedAt time.Time) (time.Time, error) {
	var committed time.Time
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempt_records (paper_code, candidate_id, started_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (paper_code, candidate_id) DO UPDATE
		 SET started_at = COALESCE(attempt_records.started_at, EXCLUDED.started_at)
		 RETURNING started_at`,
		paperCode, candidateID, startedAt,
	).Scan(&committed)
	if err != nil {
		return time.Time{}, fmt.Errorf("start attempt: %w", err)
	}
	return committed, nil
}

// SubmitAttempt writes the answer snapshot and sets the attempted flag,
// guarded by "not yet attempted". Returns false without changing anything
// when a submission already landed; the first commit wins.
func (r *AttemptRepository) SubmitAttempt(ctx context.Context, paperCode string, candidateID int, answers model.AnswerSet, submittedAt time.Time) (bool, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempt_records
		 SET answers = $3, submitted_at = $4, attempted_at = $4
		 WHERE paper_code = $1 AND candidate_id = $2 AND attempted_at IS NULL`,
		paperCode, candidateID, raw, submittedAt,
	)
	if err != nil {
		return false, fmt.Errorf("submit attempt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertAnswer folds a single autosaved answer into the stored answer set.
// The attempted guard keeps a committed snapshot immutable: late autosaves
// arriving after submission are dropped.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, paperCode string, candidateID, ordinal int, answer model.Answer) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE attempt_records
		 SET answers = jsonb_set(COALESCE(answers, '{}'::jsonb), ARRAY[$3::text], $4::jsonb)
		 WHERE paper_code = $1 AND candidate_id = $2 AND attempted_at IS NULL`,
		paperCode, candidateID, fmt.Sprintf("%d", ordinal), raw,
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// PublishResult writes the result columns, guarded by the attempted flag
// and, unless allowRepublish, by the absence of a prior published result.
// Returns false when the guard rejected the write.
func (r *AttemptRepository) PublishResult(ctx context.Context, paperCode string, candidateID int, res *model.Result, allowRepublish bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempt_records
		 SET total_marks = $3, obtained_marks = $4, percentage = $5,
		     declared_at = $6, result_status = $7
		 WHERE paper_code = $1 AND candidate_id = $2
		   AND attempted_at IS NOT NULL
		   AND (result_status IS NULL OR $8)`,
		paperCode, candidateID,
		res.TotalMarks, res.ObtainedMarks, res.Percentage,
		res.DeclaredAt, res.Status, allowRepublish,
	)
	if err != nil {
		return false, fmt.Errorf("publish result: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByPaperAndCandidate retrieves one attempt record, or ErrNoRecord.
func (r *AttemptRepository) GetByPaperAndCandidate(ctx context.Context, paperCode string, candidateID int) (*model.AttemptRecord, error) {
	row := r.pool.QueryRow(ctx,
		selectColumns+` FROM attempt_records
		 WHERE paper_code = $1 AND candidate_id = $2`,
		paperCode, candidateID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	return rec, nil
}

// ListByCandidate retrieves all attempt records for a candidate, keyed by
// paper code, in the shape the classifier consumes.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID int) (map[string]*model.AttemptRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectColumns+` FROM attempt_records WHERE candidate_id = $1`,
		candidateID,
	)
	if err != nil {
		return nil, fmt.Errorf("list by candidate: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*model.AttemptRecord)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records[rec.PaperCode] = rec
	}
	return records, rows.Err()
}

// ListSubmittedByPaper retrieves all submitted attempts for a paper,
// ordered by candidate, for instructor review.
func (r *AttemptRepository) ListSubmittedByPaper(ctx context.Context, paperCode string) ([]model.AttemptRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectColumns+` FROM attempt_records
		 WHERE paper_code = $1 AND attempted_at IS NOT NULL
		 ORDER BY candidate_id ASC`,
		paperCode,
	)
	if err != nil {
		return nil, fmt.Errorf("list submitted: %w", err)
	}
	defer rows.Close()

	var records []model.AttemptRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// OverdueAttempt identifies a started, unsubmitted attempt whose window has
// closed. The sweeper force-submits these.
type OverdueAttempt struct {
	PaperCode   string
	CandidateID int
	Answers     model.AnswerSet
	Deadline    time.Time
}

// ListOverdue finds attempts whose deadline passed before cutoff with the
// attempted flag still unset.
func (r *AttemptRepository) ListOverdue(ctx context.Context, cutoff time.Time) ([]OverdueAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.paper_code, a.candidate_id, a.answers,
		        a.started_at + make_interval(mins => p.duration_minutes) AS deadline
		 FROM attempt_records a
		 JOIN papers p ON p.code = a.paper_code
		 WHERE a.started_at IS NOT NULL
		   AND a.attempted_at IS NULL
		   AND a.started_at + make_interval(mins => p.duration_minutes) < $1`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	defer rows.Close()

	var out []OverdueAttempt
	for rows.Next() {
		var o OverdueAttempt
		var raw []byte
		if err := rows.Scan(&o.PaperCode, &o.CandidateID, &raw, &o.Deadline); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &o.Answers); err != nil {
				return nil, fmt.Errorf("unmarshal answers: %w", err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT paper_code, candidate_id, started_at, attempted_at, submitted_at,
	answers, total_marks, obtained_marks, percentage, declared_at, result_status`

func scanRecord(row pgx.Row) (*model.AttemptRecord, error) {
	var (
		rec        model.AttemptRecord
		rawAnswers []byte
		total      *int
		obtained   *int
		percentage *float64
		declaredAt *time.Time
		status     *string
	)

	err := row.Scan(
		&rec.PaperCode, &rec.CandidateID,
		&rec.StartedAt, &rec.AttemptedAt, &rec.SubmittedAt,
		&rawAnswers, &total, &obtained, &percentage, &declaredAt, &status,
	)
	if err != nil {
		return nil, err
	}

	if len(rawAnswers) > 0 {
		if err := json.Unmarshal(rawAnswers, &rec.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}

	if status != nil {
		rec.Result = &model.Result{
			TotalMarks:    deref(total),
			ObtainedMarks: deref(obtained),
			Percentage:    derefF(percentage),
			Status:        model.ResultStatus(*status),
		}
		if declaredAt != nil {
			rec.Result.DeclaredAt = *declaredAt
		}
	}

	return &rec, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefF(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
