package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Paper authoring errors surfaced to handlers.
var (
	ErrPaperNotDraft     = errors.New("paper is not editable once published")
	ErrPaperNotPublished = errors.New("paper is not published")
	ErrNoQuestions       = errors.New("paper has no questions")
)

// PaperService handles instructor-side paper authoring: draft CRUD, question
// management, and publication. A published paper's content is frozen; only
// drafts are editable.
type PaperService struct {
	paperRepo *repository.PaperRepository
	rdb       *redis.Client
	logger    zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(paperRepo *repository.PaperRepository, rdb *redis.Client, logger zerolog.Logger) *PaperService {
	return &PaperService{
		paperRepo: paperRepo,
		rdb:       rdb,
		logger:    logger.With().Str("component", "paper_service").Logger(),
	}
}

// Create inserts a new draft paper owned by the instructor.
func (s *PaperService) Create(ctx context.Context, instructorID int, req *model.CreatePaperRequest) (*model.Paper, error) {
	paper := &model.Paper{
		Code:            req.Code,
		Title:           req.Title,
		InstructorID:    instructorID,
		FacultyTrack:    req.FacultyTrack,
		Semester:        req.Semester,
		ScheduledStart:  *req.ScheduledStart,
		DurationMinutes: *req.DurationMinutes,
		Status:          model.PaperStatusDraft,
	}
	if err := s.paperRepo.Create(ctx, paper); err != nil {
		return nil, err
	}
	s.logger.Info().Str("paper", paper.Code).Int("instructor", instructorID).Msg("draft paper created")
	return paper, nil
}

// Get loads one paper owned by the instructor, questions included.
func (s *PaperService) Get(ctx context.Context, instructorID int, code string) (*model.Paper, error) {
	return s.owned(ctx, instructorID, code)
}

// List returns all papers authored by the instructor.
func (s *PaperService) List(ctx context.Context, instructorID int) ([]model.Paper, error) {
	return s.paperRepo.ListByInstructor(ctx, instructorID)
}

// Update edits the header fields of a draft paper.
func (s *PaperService) Update(ctx context.Context, instructorID int, code string, req *model.UpdatePaperRequest) (*model.Paper, error) {
	paper, err := s.ownedDraft(ctx, instructorID, code)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		paper.Title = req.Title
	}
	if req.FacultyTrack != "" {
		paper.FacultyTrack = req.FacultyTrack
	}
	if req.Semester != "" {
		paper.Semester = req.Semester
	}
	if req.ScheduledStart != nil {
		paper.ScheduledStart = *req.ScheduledStart
	}
	if req.DurationMinutes != nil {
		paper.DurationMinutes = *req.DurationMinutes
	}

	if err := s.paperRepo.Update(ctx, paper); err != nil {
		return nil, err
	}
	return paper, nil
}

// Delete removes a draft paper entirely.
func (s *PaperService) Delete(ctx context.Context, instructorID int, code string) error {
	if _, err := s.ownedDraft(ctx, instructorID, code); err != nil {
		return err
	}
	return s.paperRepo.Delete(ctx, code)
}

// ReplaceQuestions swaps the question list of a draft paper. Ordinals are
// assigned from the request order, starting at zero.
func (s *PaperService) ReplaceQuestions(ctx context.Context, instructorID int, code string, req *model.ReplaceQuestionsRequest) (*model.Paper, error) {
	if _, err := s.ownedDraft(ctx, instructorID, code); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, qr := range req.Questions {
		q := model.Question{
			Ordinal:       i,
			Prompt:        qr.Prompt,
			Kind:          model.QuestionKind(qr.Kind),
			Options:       qr.Options,
			CorrectOption: qr.CorrectOption,
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	if err := s.paperRepo.ReplaceQuestions(ctx, code, questions); err != nil {
		return nil, err
	}
	return s.paperRepo.GetByCode(ctx, code)
}

// Publish freezes a draft and makes it visible to eligible candidates. The
// candidate payload is warmed into Redis so attempt traffic avoids Postgres.
func (s *PaperService) Publish(ctx context.Context, instructorID int, code string) (*model.Paper, error) {
	paper, err := s.ownedDraft(ctx, instructorID, code)
	if err != nil {
		return nil, err
	}
	if len(paper.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	for i := range paper.Questions {
		if err := paper.Questions[i].Validate(); err != nil {
			return nil, err
		}
	}

	if err := s.paperRepo.UpdateStatus(ctx, code, model.PaperStatusPublished); err != nil {
		return nil, err
	}
	paper.Status = model.PaperStatusPublished

	if err := s.warmCache(ctx, paper); err != nil {
		// Cache warming is best-effort; reads fall back to Postgres.
		s.logger.Warn().Err(err).Str("paper", code).Msg("failed to warm paper cache")
	}

	s.logger.Info().Str("paper", code).Int("questions", len(paper.Questions)).Msg("paper published")
	return paper, nil
}

// PrewarmAll reloads the Redis cache for every published paper. Called on
// boot so a cold cache never blocks attempt traffic.
func (s *PaperService) PrewarmAll(ctx context.Context) error {
	codes, err := s.paperRepo.ListPublishedCodes(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		paper, err := s.paperRepo.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := s.warmCache(ctx, paper); err != nil {
			return err
		}
	}
	s.logger.Info().Int("papers", len(codes)).Msg("paper cache prewarmed")
	return nil
}

// warmCache stores the candidate payload for a paper. Attempt traffic reads
// this key and only falls back to Postgres on a miss.
func (s *PaperService) warmCache(ctx context.Context, paper *model.Paper) error {
	payload, err := json.Marshal(payloadOf(paper))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.PaperPayloadKey(paper.Code), payload, 0).Err(); err != nil {
		return fmt.Errorf("cache payload: %w", err)
	}
	return nil
}

func (s *PaperService) owned(ctx context.Context, instructorID int, code string) (*model.Paper, error) {
	paper, err := s.paperRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if paper.InstructorID != instructorID {
		return nil, ErrNotPaperOwner
	}
	return paper, nil
}

func (s *PaperService) ownedDraft(ctx context.Context, instructorID int, code string) (*model.Paper, error) {
	paper, err := s.owned(ctx, instructorID, code)
	if err != nil {
		return nil, err
	}
	if paper.Status != model.PaperStatusDraft {
		return nil, ErrPaperNotDraft
	}
	return paper, nil
}
