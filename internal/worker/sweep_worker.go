package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SweepWorker periodically force-submits attempts that overran their window
// without a submission landing: crashed processes, dead timers, candidates
// who dropped offline. The store's conditional write makes the sweep safe to
// race against a live countdown or another replica; whoever commits first
// wins and the loser is a no-op.
type SweepWorker struct {
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	interval    time.Duration
	log         zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(attemptRepo *repository.AttemptRepository, rdb *redis.Client, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		attemptRepo: attemptRepo,
		rdb:         rdb,
		interval:    interval,
		log:         log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	overdue, err := w.attemptRepo.ListOverdue(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("Overdue scan failed")
		return
	}

	for _, att := range overdue {
		answers := w.freshestAnswers(ctx, &att)

		committed, err := w.attemptRepo.SubmitAttempt(ctx, att.PaperCode, att.CandidateID, answers, att.Deadline)
		if err != nil {
			w.log.Error().Err(err).
				Str("paper", att.PaperCode).
				Int("candidate", att.CandidateID).
				Msg("Force submit failed, retrying on next sweep")
			continue
		}
		if !committed {
			// A live timer or another replica got there first.
			continue
		}

		w.rdb.Del(ctx,
			config.CacheKey.AttemptStartKey(att.PaperCode, att.CandidateID),
			config.CacheKey.AttemptAnswersKey(att.PaperCode, att.CandidateID),
			config.CacheKey.AttemptPositionKey(att.PaperCode, att.CandidateID),
		)

		w.log.Info().
			Str("paper", att.PaperCode).
			Int("candidate", att.CandidateID).
			Time("deadline", att.Deadline).
			Msg("Overdue attempt force-submitted")
	}
}

// freshestAnswers overlays the Redis autosave hash on the durable answer
// set, so the sweep commits everything the candidate managed to record.
func (w *SweepWorker) freshestAnswers(ctx context.Context, att *repository.OverdueAttempt) model.AnswerSet {
	answers := att.Answers.Clone()

	cached, err := w.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(att.PaperCode, att.CandidateID)).Result()
	if err != nil {
		return answers
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
	return answers
}
