// Package session drives the lifecycle of a single in-progress attempt:
// begin, question navigation, answer capture, and the countdown that forces
// submission when the window closes. Exactly one submission is ever committed
// per (paper, candidate); the first trigger wins and later ones are no-ops.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/clock"
	"github.com/paperdesk/paperdesk-backend/internal/model"
)

// Domain errors surfaced to callers.
var (
	// ErrInvalidState means the operation is not legal in the session's
	// current state (begin twice, answer after submit, begin before open).
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrStoreUnavailable wraps a terminal write that kept failing after the
	// configured retries. The operation is idempotent; the caller may retry
	// the same logical call without risking a duplicate commit.
	ErrStoreUnavailable = errors.New("attempt store unavailable")

	// ErrBadOrdinal means the question ordinal is outside the paper.
	ErrBadOrdinal = errors.New("question ordinal out of range")
)

// State is the session lifecycle state.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateSubmitted  State = "SUBMITTED"
)

// Store is the durable boundary the session writes through. Both writes are
// conditional so retried calls are applied at most once.
type Store interface {
	// StartAttempt durably records the start timestamp for (paper, candidate),
	// creating the record if needed. If a start was already committed (retry,
	// second device) the original timestamp is returned; the write never
	// overwrites an existing start.
	StartAttempt(ctx context.Context, paperCode string, candidateID int, startedAt time.Time) (time.Time, error)

	// SubmitAttempt writes the answer snapshot, submission timestamp, and the
	// attempted flag, guarded by "not yet attempted". Returns false when a
	// submission already landed, in which case nothing was changed.
	SubmitAttempt(ctx context.Context, paperCode string, candidateID int, answers model.AnswerSet, submittedAt time.Time) (bool, error)
}

// Config tunes terminal-write retry behavior and the auto-submit hook.
type Config struct {
	RetryAttempts int
	RetryBackoff  time.Duration

	// OnAutoSubmit fires after a timeout-triggered submission commits,
	// with the committed answer snapshot. Optional.
	OnAutoSubmit func(snapshot model.AnswerSet)
}

func (c *Config) defaults() {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
}

// Session owns one attempt. All methods are safe for concurrent use; the
// submit path and the countdown race through the same mutex, so only one
// terminal transition ever runs.
type Session struct {
	mu sync.Mutex

	paper   *model.Paper
	profile model.CandidateProfile
	store   Store
	clk     clock.Clock
	cfg     Config

	state     State
	startedAt time.Time
	current   int
	answers   model.AnswerSet
	timer     *time.Timer
}

// New creates a session in NotStarted for the given paper and candidate.
func New(paper *model.Paper, profile model.CandidateProfile, store Store, clk clock.Clock, cfg Config) *Session {
	cfg.defaults()
	return &Session{
		paper:   paper,
		profile: profile,
		store:   store,
		clk:     clk,
		cfg:     cfg,
		state:   StateNotStarted,
		answers: make(model.AnswerSet),
	}
}

// Resume creates a session already InProgress from a previously committed
// start (page reload, reconnect). The countdown is armed against the
// original start timestamp, not the resume instant.
func Resume(paper *model.Paper, profile model.CandidateProfile, store Store, clk clock.Clock, cfg Config, startedAt time.Time, answers model.AnswerSet) *Session {
	s := New(paper, profile, store, clk, cfg)
	s.state = StateInProgress
	s.startedAt = startedAt
	if answers != nil {
		s.answers = answers.Clone()
	}
	s.armTimer()
	return s
}

// Begin transitions NotStarted → InProgress. Legal only once the paper's
// scheduled start has passed. The start timestamp is committed to the store
// before the transition so a crash or retry cannot produce a second start.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotStarted {
		return ErrInvalidState
	}

	now := s.clk.Now()
	if now.Before(s.paper.ScheduledStart) {
		return fmt.Errorf("%w: paper %s opens at %s", ErrInvalidState, s.paper.Code, s.paper.ScheduledStart)
	}

	var committed time.Time
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		committed, err = s.store.StartAttempt(ctx, s.paper.Code, s.profile.ID, now)
		return err
	})
	if err != nil {
		return err
	}

	s.startedAt = committed
	s.current = 0
	s.state = StateInProgress
	s.armTimer()
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartedAt returns the committed start timestamp (zero before Begin).
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Current returns the ordinal of the question the candidate is on.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Remaining returns the time left on the attempt, floored at zero.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return 0
	}
	return s.remainingLocked()
}

func (s *Session) remainingLocked() time.Duration {
	rem := s.paper.Deadline(s.startedAt).Sub(s.clk.Now())
	if rem < 0 {
		rem = 0
	}
	return rem
}

// Navigate moves the current question by delta (±1 from the UI), clamped to
// the paper's question range. Answers of other questions are untouched.
func (s *Session) Navigate(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return 0, ErrInvalidState
	}

	next := s.current + delta
	if next < 0 {
		next = 0
	}
	if last := len(s.paper.Questions) - 1; next > last {
		next = last
	}
	s.current = next
	return s.current, nil
}

// RecordAnswer upserts the answer entry for a question. The option channel
// replaces any prior chosen label; the text channel replaces any prior text.
// A BOTH question may carry one of each concurrently. Channels the question
// kind does not accept are ignored.
func (s *Session) RecordAnswer(ordinal int, option, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return ErrInvalidState
	}
	if ordinal < 0 || ordinal >= len(s.paper.Questions) {
		return fmt.Errorf("%w: %d", ErrBadOrdinal, ordinal)
	}

	kind := s.paper.Questions[ordinal].Kind
	ans := s.answers[ordinal]
	if option != "" && kind.HasOptions() {
		ans.Option = option
	}
	if text != "" && kind.HasFreeText() {
		ans.Text = text
	}
	s.answers[ordinal] = ans
	return nil
}

// Answers returns a copy of the answers recorded so far.
func (s *Session) Answers() model.AnswerSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// Submit commits the attempt explicitly. Idempotent against the timeout: if
// the countdown already fired, the state is Submitted and the call reports
// ErrInvalidState without touching the committed snapshot.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return ErrInvalidState
	}
	return s.commitLocked(ctx)
}

// commitLocked performs the terminal transition. Caller holds s.mu and has
// verified state == InProgress. On store failure the session stays
// InProgress so the candidate sees "submission in progress", never a silent
// loss: the same call can be safely reissued.
func (s *Session) commitLocked(ctx context.Context) error {
	snapshot := s.answers.Clone()
	now := s.clk.Now()

	err := s.withRetry(ctx, func(ctx context.Context) error {
		// committed=false means another trigger (sweeper, other replica) won
		// the conditional write. That still terminates this session; the
		// snapshot that landed first is authoritative.
		_, err := s.store.SubmitAttempt(ctx, s.paper.Code, s.profile.ID, snapshot, now)
		return err
	})
	if err != nil {
		return err
	}

	s.state = StateSubmitted
	s.stopTimerLocked()
	return nil
}

// armTimer schedules the auto-submit exactly once at the attempt deadline.
// Caller holds s.mu.
func (s *Session) armTimer() {
	s.timer = time.AfterFunc(s.remainingLocked(), s.timeout)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// timeout is the countdown callback: it commits whatever answers were
// recorded at this instant. Racing against an explicit Submit is resolved by
// the state check under the mutex; racing against another writer is resolved
// by the store's conditional write.
func (s *Session) timeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return
	}

	if err := s.commitLocked(context.Background()); err != nil {
		// The store is down; leave InProgress and re-arm so the submission
		// is retried rather than lost. The deadline sweeper will also catch
		// this attempt from the durable side.
		s.timer = time.AfterFunc(s.cfg.RetryBackoff+time.Second, s.timeout)
		return
	}

	if s.cfg.OnAutoSubmit != nil {
		go s.cfg.OnAutoSubmit(s.answers.Clone())
	}
}

// Close cancels the countdown without submitting. Used when the process is
// shutting down; the durable record keeps the attempt resumable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// withRetry runs op with bounded retries and linear backoff, wrapping the
// final failure in ErrStoreUnavailable.
func (s *Session) withRetry(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == s.cfg.RetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
