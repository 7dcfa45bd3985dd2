package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/classifier"
	"github.com/paperdesk/paperdesk-backend/internal/clock"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/paperdesk/paperdesk-backend/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt lifecycle errors surfaced to handlers.
var (
	ErrPaperNotAvailable = errors.New("paper is not available for this candidate right now")
	ErrNoActiveAttempt   = errors.New("no attempt in progress for this paper")
)

// AnswerJob is the queue payload for durably persisting one autosaved answer.
type AnswerJob struct {
	PaperCode   string       `json:"paper_code"`
	CandidateID int          `json:"candidate_id"`
	Ordinal     int          `json:"ordinal"`
	Answer      model.Answer `json:"answer"`
}

// AttemptState is the snapshot shipped to a candidate on begin and reconnect.
type AttemptState struct {
	Paper            *model.PaperPayload `json:"paper"`
	State            session.State       `json:"state"`
	StartedAt        time.Time           `json:"started_at"`
	RemainingSeconds float64             `json:"remaining_seconds"`
	Current          int                 `json:"current"`
	Answers          model.AnswerSet     `json:"answers"`
}

// AttemptService drives candidate attempts: begin, live answer capture,
// explicit and automatic submission, and reconnect recovery. Live sessions
// are held in an in-process registry; the durable record and the Redis
// answer hash make an attempt recoverable across restarts.
type AttemptService struct {
	cfg         *config.Config
	paperRepo   *repository.PaperRepository
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	registry    *session.Registry
	clk         clock.Clock
	logger      zerolog.Logger

	// onAutoSubmit is invoked after a countdown-forced submission commits,
	// so the transport layer can push the event to a connected candidate.
	onAutoSubmit func(paperCode string, candidateID int)
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	cfg *config.Config,
	paperRepo *repository.PaperRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	registry *session.Registry,
	clk clock.Clock,
	logger zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		cfg:         cfg,
		paperRepo:   paperRepo,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		registry:    registry,
		clk:         clk,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
	}
}

// SetAutoSubmitNotifier registers the transport callback fired after a
// timeout-forced submission. Wired once at startup.
func (s *AttemptService) SetAutoSubmitNotifier(fn func(paperCode string, candidateID int)) {
	s.onAutoSubmit = fn
}

// Begin starts an attempt on a paper. The start timestamp is durably
// committed before the candidate sees a single question; rejoining after a
// reload resumes the already-running attempt instead of starting a new one.
func (s *AttemptService) Begin(ctx context.Context, profile model.CandidateProfile, paperCode string) (*AttemptState, error) {
	paper, err := s.eligiblePaper(ctx, profile, paperCode)
	if err != nil {
		return nil, err
	}

	rec, err := s.attemptRepo.GetByPaperAndCandidate(ctx, paperCode, profile.ID)
	if err != nil && !errors.Is(err, repository.ErrNoRecord) {
		return nil, fmt.Errorf("check attempt: %w", err)
	}
	if rec.Attempted() {
		return nil, session.ErrInvalidState
	}
	if rec.Started() {
		// Reload or second device: resume against the original start.
		return s.resume(ctx, paper, profile, rec)
	}

	policy := classifier.Policy{ZeroDurationAvailable: s.cfg.ZeroDurationAvailable}
	b := classifier.Classify(profile, []model.Paper{*paper}, nil, s.clk.Now(), policy)
	if len(b.Available) == 0 {
		return nil, ErrPaperNotAvailable
	}

	sess := session.New(paper, profile, s.attemptRepo, s.clk, s.sessionConfig(paper.Code, profile.ID))
	if err := sess.Begin(ctx); err != nil {
		return nil, err
	}
	s.registry.Put(paper.Code, profile.ID, sess)

	// Cache the start so reconnect state does not need Postgres on the hot
	// path. A write failure here is harmless; recovery falls back to the DB.
	startKey := config.CacheKey.AttemptStartKey(paper.Code, profile.ID)
	if err := s.rdb.Set(ctx, startKey, sess.StartedAt().Unix(), 0).Err(); err != nil {
		s.logger.Warn().Err(err).Str("paper", paper.Code).Int("candidate", profile.ID).
			Msg("failed to cache attempt start")
	}

	s.logger.Info().Str("paper", paper.Code).Int("candidate", profile.ID).
		Time("started_at", sess.StartedAt()).Msg("attempt started")

	return s.stateOf(ctx, paper, sess), nil
}

// GetState returns the live state for a candidate's attempt, recovering the
// session from durable storage when the process has no live copy (restart,
// replica switch).
func (s *AttemptService) GetState(ctx context.Context, profile model.CandidateProfile, paperCode string) (*AttemptState, error) {
	paper, err := s.eligiblePaper(ctx, profile, paperCode)
	if err != nil {
		return nil, err
	}

	if sess := s.registry.Get(paperCode, profile.ID); sess != nil {
		return s.stateOf(ctx, paper, sess), nil
	}

	rec, err := s.attemptRepo.GetByPaperAndCandidate(ctx, paperCode, profile.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRecord) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if rec.Attempted() || !rec.Started() {
		return nil, ErrNoActiveAttempt
	}

	return s.resume(ctx, paper, profile, rec)
}

// resume rebuilds a live session from the durable record plus any answers
// autosaved in Redis since the durable snapshot. Caller has verified the
// record is started and not attempted.
func (s *AttemptService) resume(ctx context.Context, paper *model.Paper, profile model.CandidateProfile, rec *model.AttemptRecord) (*AttemptState, error) {
	startedAt, err := s.startedAt(ctx, paper.Code, profile.ID, rec)
	if err != nil {
		return nil, err
	}

	answers := rec.Answers.Clone()

	// Redis holds the freshest autosaves; fold them over the durable set.
	answersKey := config.CacheKey.AttemptAnswersKey(paper.Code, profile.ID)
	cached, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("paper", paper.Code).Int("candidate", profile.ID).
			Msg("failed to read cached answers, resuming from durable snapshot")
	}
	for field, raw := range cached {
		ordinal, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var ans model.Answer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			continue
		}
		answers[ordinal] = ans
	}

	sess := session.Resume(paper, profile, s.attemptRepo, s.clk, s.sessionConfig(paper.Code, profile.ID), startedAt, answers)
	s.registry.Put(paper.Code, profile.ID, sess)

	state := s.stateOf(ctx, paper, sess)
	if pos, err := s.rdb.Get(ctx, config.CacheKey.AttemptPositionKey(paper.Code, profile.ID)).Int(); err == nil {
		state.Current = pos
	}

	s.logger.Info().Str("paper", paper.Code).Int("candidate", profile.ID).
		Msg("attempt resumed")
	return state, nil
}

// startedAt resolves the committed start timestamp, Redis first with a
// Postgres fallback plus self-heal.
func (s *AttemptService) startedAt(ctx context.Context, paperCode string, candidateID int, rec *model.AttemptRecord) (time.Time, error) {
	startKey := config.CacheKey.AttemptStartKey(paperCode, candidateID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if err == nil {
		if unix, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return time.Unix(unix, 0), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("redis start-time lookup failed, using durable record")
	}

	if !rec.Started() {
		return time.Time{}, ErrNoActiveAttempt
	}
	_ = s.rdb.Set(ctx, startKey, rec.StartedAt.Unix(), 0).Err()
	return *rec.StartedAt, nil
}

// RecordAnswer captures one answer: into the live session, into the Redis
// hash for crash recovery, and onto the persistence queue for the durable
// jsonb column.
func (s *AttemptService) RecordAnswer(ctx context.Context, profile model.CandidateProfile, paperCode string, ordinal int, option, text string) error {
	sess := s.registry.Get(paperCode, profile.ID)
	if sess == nil {
		return ErrNoActiveAttempt
	}

	if err := sess.RecordAnswer(ordinal, option, text); err != nil {
		return err
	}

	ans := sess.Answers()[ordinal]
	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	answersKey := config.CacheKey.AttemptAnswersKey(paperCode, profile.ID)
	if err := s.rdb.HSet(ctx, answersKey, strconv.Itoa(ordinal), raw).Err(); err != nil {
		s.logger.Warn().Err(err).Str("paper", paperCode).Int("candidate", profile.ID).
			Msg("failed to cache answer")
	}

	job, err := json.Marshal(AnswerJob{
		PaperCode:   paperCode,
		CandidateID: profile.ID,
		Ordinal:     ordinal,
		Answer:      ans,
	})
	if err != nil {
		return fmt.Errorf("marshal answer job: %w", err)
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to enqueue answer persistence")
	}

	return nil
}

// Navigate moves the candidate's current question by delta and remembers the
// position for reconnects.
func (s *AttemptService) Navigate(ctx context.Context, profile model.CandidateProfile, paperCode string, delta int) (int, error) {
	sess := s.registry.Get(paperCode, profile.ID)
	if sess == nil {
		return 0, ErrNoActiveAttempt
	}

	pos, err := sess.Navigate(delta)
	if err != nil {
		return 0, err
	}

	posKey := config.CacheKey.AttemptPositionKey(paperCode, profile.ID)
	if err := s.rdb.Set(ctx, posKey, pos, 0).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache position")
	}
	return pos, nil
}

// Submit commits the attempt explicitly. On success the live session and its
// Redis scratch state are torn down; retrying after a store outage reissues
// the same conditional write.
func (s *AttemptService) Submit(ctx context.Context, profile model.CandidateProfile, paperCode string) error {
	sess := s.registry.Get(paperCode, profile.ID)
	if sess == nil {
		return ErrNoActiveAttempt
	}

	if err := sess.Submit(ctx); err != nil {
		return err
	}

	s.teardown(paperCode, profile.ID)
	s.logger.Info().Str("paper", paperCode).Int("candidate", profile.ID).
		Msg("attempt submitted")
	return nil
}

// teardown drops the live session and clears the per-attempt Redis keys.
func (s *AttemptService) teardown(paperCode string, candidateID int) {
	s.registry.Remove(paperCode, candidateID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.rdb.Del(ctx,
		config.CacheKey.AttemptStartKey(paperCode, candidateID),
		config.CacheKey.AttemptAnswersKey(paperCode, candidateID),
		config.CacheKey.AttemptPositionKey(paperCode, candidateID),
	)
}

// sessionConfig builds the per-session retry and auto-submit wiring.
func (s *AttemptService) sessionConfig(paperCode string, candidateID int) session.Config {
	return session.Config{
		RetryAttempts: s.cfg.SubmitRetryAttempts,
		RetryBackoff:  s.cfg.SubmitRetryBackoff,
		OnAutoSubmit: func(model.AnswerSet) {
			s.logger.Info().Str("paper", paperCode).Int("candidate", candidateID).
				Msg("attempt auto-submitted at deadline")
			s.teardown(paperCode, candidateID)
			if s.onAutoSubmit != nil {
				s.onAutoSubmit(paperCode, candidateID)
			}
		},
	}
}

// eligiblePaper loads a published paper and checks the candidate's
// eligibility filter.
func (s *AttemptService) eligiblePaper(ctx context.Context, profile model.CandidateProfile, paperCode string) (*model.Paper, error) {
	paper, err := s.paperRepo.GetByCode(ctx, paperCode)
	if err != nil {
		return nil, err
	}
	if paper.Status != model.PaperStatusPublished {
		return nil, ErrPaperNotAvailable
	}
	if paper.FacultyTrack != profile.FacultyTrack || paper.Semester != profile.Semester {
		return nil, ErrPaperNotAvailable
	}
	return paper, nil
}

func (s *AttemptService) stateOf(ctx context.Context, paper *model.Paper, sess *session.Session) *AttemptState {
	return &AttemptState{
		Paper:            s.paperPayload(ctx, paper),
		State:            sess.State(),
		StartedAt:        sess.StartedAt(),
		RemainingSeconds: sess.Remaining().Seconds(),
		Current:          sess.Current(),
		Answers:          sess.Answers(),
	}
}

// paperPayload serves the candidate payload from the cache warmed at publish
// time, rebuilding and re-warming it from the loaded paper on a miss.
func (s *AttemptService) paperPayload(ctx context.Context, paper *model.Paper) *model.PaperPayload {
	key := config.CacheKey.PaperPayloadKey(paper.Code)

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var payload model.PaperPayload
		if uerr := json.Unmarshal([]byte(raw), &payload); uerr == nil {
			return &payload
		}
		s.logger.Warn().Str("paper", paper.Code).Msg("corrupt cached paper payload, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Str("paper", paper.Code).Msg("redis payload lookup failed, building from record")
	}

	payload := payloadOf(paper)
	if data, merr := json.Marshal(payload); merr == nil {
		_ = s.rdb.Set(ctx, key, data, 0).Err()
	}
	return payload
}

// payloadOf strips correct options off a paper for candidate consumption.
func payloadOf(paper *model.Paper) *model.PaperPayload {
	payload := &model.PaperPayload{
		Code:            paper.Code,
		Title:           paper.Title,
		DurationMinutes: paper.DurationMinutes,
		Questions:       make([]model.QuestionForCandidate, 0, len(paper.Questions)),
	}
	for _, q := range paper.Questions {
		payload.Questions = append(payload.Questions, model.QuestionForCandidate{
			Ordinal: q.Ordinal,
			Prompt:  q.Prompt,
			Kind:    q.Kind,
			Options: q.Options,
		})
	}
	return payload
}
