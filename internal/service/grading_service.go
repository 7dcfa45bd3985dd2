package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/clock"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/grader"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Grading errors surfaced to handlers.
var (
	ErrNotSubmitted     = errors.New("attempt has not been submitted")
	ErrAlreadyPublished = errors.New("result already published")
	ErrNotPaperOwner    = errors.New("paper belongs to another instructor")
)

// ResultJob is the queue payload for durably persisting a published result.
type ResultJob struct {
	PaperCode   string       `json:"paper_code"`
	CandidateID int          `json:"candidate_id"`
	Result      model.Result `json:"result"`
}

// ReviewSheet is one candidate's submission scored for instructor review.
// The score reflects the currently staged verdicts; free-text channels
// without a verdict count as Pending and earn nothing yet.
type ReviewSheet struct {
	CandidateID int          `json:"candidate_id"`
	SubmittedAt *time.Time   `json:"submitted_at,omitempty"`
	Published   bool         `json:"published"`
	Score       grader.Score `json:"score"`
}

// GradingService handles instructor review: scored sheets per submission,
// verdict staging for free-text answers, and result publication. Staged
// verdicts live in Redis until publication folds them into a result.
type GradingService struct {
	cfg         *config.Config
	paperRepo   *repository.PaperRepository
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	clk         clock.Clock
	logger      zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	cfg *config.Config,
	paperRepo *repository.PaperRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	clk clock.Clock,
	logger zerolog.Logger,
) *GradingService {
	return &GradingService{
		cfg:         cfg,
		paperRepo:   paperRepo,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		clk:         clk,
		logger:      logger.With().Str("component", "grading_service").Logger(),
	}
}

// ListSheets returns a scored review sheet for every submitted attempt on
// the paper, with staged verdicts applied.
func (s *GradingService) ListSheets(ctx context.Context, instructorID int, paperCode string) ([]ReviewSheet, error) {
	paper, err := s.ownedPaper(ctx, instructorID, paperCode)
	if err != nil {
		return nil, err
	}

	records, err := s.attemptRepo.ListSubmittedByPaper(ctx, paperCode)
	if err != nil {
		return nil, err
	}

	sheets := make([]ReviewSheet, 0, len(records))
	for i := range records {
		rec := &records[i]
		verdicts, err := s.stagedVerdicts(ctx, paperCode, rec.CandidateID)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, ReviewSheet{
			CandidateID: rec.CandidateID,
			SubmittedAt: rec.SubmittedAt,
			Published:   rec.Published(),
			Score:       grader.Grade(paper.Questions, rec.Answers, verdicts),
		})
	}
	return sheets, nil
}

// GetSheet returns the scored sheet for one candidate's submission.
func (s *GradingService) GetSheet(ctx context.Context, instructorID int, paperCode string, candidateID int) (*ReviewSheet, error) {
	paper, err := s.ownedPaper(ctx, instructorID, paperCode)
	if err != nil {
		return nil, err
	}

	rec, err := s.attemptRepo.GetByPaperAndCandidate(ctx, paperCode, candidateID)
	if err != nil {
		return nil, err
	}
	if !rec.Attempted() {
		return nil, ErrNotSubmitted
	}

	verdicts, err := s.stagedVerdicts(ctx, paperCode, candidateID)
	if err != nil {
		return nil, err
	}

	return &ReviewSheet{
		CandidateID: candidateID,
		SubmittedAt: rec.SubmittedAt,
		Published:   rec.Published(),
		Score:       grader.Grade(paper.Questions, rec.Answers, verdicts),
	}, nil
}

// StageVerdict records an instructor's call on one free-text answer. Staged
// verdicts are revisable until publication; a re-stage simply overwrites.
func (s *GradingService) StageVerdict(ctx context.Context, instructorID int, paperCode string, candidateID, ordinal int, verdict model.Verdict) (*ReviewSheet, error) {
	paper, err := s.ownedPaper(ctx, instructorID, paperCode)
	if err != nil {
		return nil, err
	}
	if ordinal < 0 || ordinal >= len(paper.Questions) {
		return nil, fmt.Errorf("question ordinal %d out of range", ordinal)
	}
	if !paper.Questions[ordinal].Kind.HasFreeText() {
		return nil, fmt.Errorf("question %d has no free-text channel to verdict", ordinal)
	}

	rec, err := s.attemptRepo.GetByPaperAndCandidate(ctx, paperCode, candidateID)
	if err != nil {
		return nil, err
	}
	if !rec.Attempted() {
		return nil, ErrNotSubmitted
	}
	if rec.Published() && !s.cfg.AllowRepublish {
		return nil, ErrAlreadyPublished
	}

	verdictsKey := config.CacheKey.VerdictsKey(paperCode, candidateID)
	if err := s.rdb.HSet(ctx, verdictsKey, strconv.Itoa(ordinal), string(verdict)).Err(); err != nil {
		return nil, fmt.Errorf("stage verdict: %w", err)
	}

	verdicts, err := s.stagedVerdicts(ctx, paperCode, candidateID)
	if err != nil {
		return nil, err
	}
	return &ReviewSheet{
		CandidateID: candidateID,
		SubmittedAt: rec.SubmittedAt,
		Published:   rec.Published(),
		Score:       grader.Grade(paper.Questions, rec.Answers, verdicts),
	}, nil
}

// Publish freezes the current score into a result and declares it to the
// candidate. Publication requires a submitted attempt; republication is
// rejected unless explicitly allowed by configuration.
func (s *GradingService) Publish(ctx context.Context, instructorID int, paperCode string, candidateID int) (*model.Result, error) {
	paper, err := s.ownedPaper(ctx, instructorID, paperCode)
	if err != nil {
		return nil, err
	}

	rec, err := s.attemptRepo.GetByPaperAndCandidate(ctx, paperCode, candidateID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRecord) {
			return nil, ErrNotSubmitted
		}
		return nil, err
	}
	if !rec.Attempted() {
		return nil, ErrNotSubmitted
	}
	if rec.Published() && !s.cfg.AllowRepublish {
		return nil, ErrAlreadyPublished
	}

	verdicts, err := s.stagedVerdicts(ctx, paperCode, candidateID)
	if err != nil {
		return nil, err
	}

	score := grader.Grade(paper.Questions, rec.Answers, verdicts)
	result := &model.Result{
		TotalMarks:    score.TotalMarks,
		ObtainedMarks: score.ObtainedMarks,
		Percentage:    score.Percentage,
		DeclaredAt:    s.clk.Now(),
		Status:        model.ResultStatusPublished,
	}

	// The guarded write is the authority; a concurrent publish losing the
	// race surfaces as AlreadyPublished rather than silently overwriting.
	ok, err := s.attemptRepo.PublishResult(ctx, paperCode, candidateID, result, s.cfg.AllowRepublish)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyPublished
	}

	// Staged verdicts are folded in; drop the scratch hash.
	_ = s.rdb.Del(ctx, config.CacheKey.VerdictsKey(paperCode, candidateID)).Err()

	// Mirror onto the result queue so the audit worker batch can process
	// declarations (exports, notifications) off the request path.
	if job, err := json.Marshal(ResultJob{PaperCode: paperCode, CandidateID: candidateID, Result: *result}); err == nil {
		if err := s.rdb.LPush(ctx, config.WorkerKey.PersistResultsQueue, job).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to enqueue result job")
		}
	}

	s.logger.Info().Str("paper", paperCode).Int("candidate", candidateID).
		Int("obtained", result.ObtainedMarks).Int("total", result.TotalMarks).
		Msg("result published")
	return result, nil
}

// stagedVerdicts loads the staged verdict hash for one candidate.
func (s *GradingService) stagedVerdicts(ctx context.Context, paperCode string, candidateID int) (model.VerdictSet, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.VerdictsKey(paperCode, candidateID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load verdicts: %w", err)
	}

	verdicts := make(model.VerdictSet, len(raw))
	for field, val := range raw {
		ordinal, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		v := model.Verdict(val)
		if v.Valid() {
			verdicts[ordinal] = v
		}
	}
	return verdicts, nil
}

// ownedPaper loads a paper and verifies the instructor owns it. Admins may
// review any paper.
func (s *GradingService) ownedPaper(ctx context.Context, instructorID int, paperCode string) (*model.Paper, error) {
	paper, err := s.paperRepo.GetByCode(ctx, paperCode)
	if err != nil {
		return nil, err
	}
	if paper.Status != model.PaperStatusPublished {
		return nil, ErrPaperNotPublished
	}
	if instructorID != 0 && paper.InstructorID != instructorID {
		return nil, ErrNotPaperOwner
	}
	return paper, nil
}
