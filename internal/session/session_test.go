package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/clock"
	"github.com/paperdesk/paperdesk-backend/internal/model"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testPaper() *model.Paper {
	return &model.Paper{
		Code:            "PP101",
		Title:           "Test Paper",
		FacultyTrack:    "BCA",
		Semester:        "SEM5",
		ScheduledStart:  testStart,
		DurationMinutes: 60,
		Status:          model.PaperStatusPublished,
		Questions: []model.Question{
			{Ordinal: 0, Kind: model.QuestionKindMultipleChoice, Options: map[string]string{"A": "a", "B": "b"}, CorrectOption: "A"},
			{Ordinal: 1, Kind: model.QuestionKindFreeText},
			{Ordinal: 2, Kind: model.QuestionKindBoth, Options: map[string]string{"A": "a", "B": "b"}, CorrectOption: "B"},
		},
	}
}

var testProfile = model.CandidateProfile{ID: 7, Name: "Tester", FacultyTrack: "BCA", Semester: "SEM5"}

// fakeStore implements Store with the production conditional-write semantics:
// start is set once, submit commits at most once.
type fakeStore struct {
	mu sync.Mutex

	startCalls  int
	submitCalls int

	failStarts  int // fail this many StartAttempt calls before succeeding
	failSubmits int // fail this many SubmitAttempt calls before succeeding

	startedAt *time.Time
	submitted bool
	snapshot  model.AnswerSet
}

var errStoreDown = errors.New("connection refused")

func (f *fakeStore) StartAttempt(_ context.Context, _ string, _ int, at time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.failStarts > 0 {
		f.failStarts--
		return time.Time{}, errStoreDown
	}
	if f.startedAt == nil {
		f.startedAt = &at
	}
	return *f.startedAt, nil
}

func (f *fakeStore) SubmitAttempt(_ context.Context, _ string, _ int, answers model.AnswerSet, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.failSubmits > 0 {
		f.failSubmits--
		return false, errStoreDown
	}
	if f.submitted {
		return false, nil
	}
	f.submitted = true
	f.snapshot = answers.Clone()
	return true, nil
}

func (f *fakeStore) stats() (starts, submits int, submitted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.submitCalls, f.submitted
}

func fixedClock(at time.Time) clock.Clock {
	return clock.Func(func() time.Time { return at })
}

func newTestSession(store Store, clk clock.Clock, cfg Config) *Session {
	return New(testPaper(), testProfile, store, clk, cfg)
}

func TestBeginBeforeScheduledStart(t *testing.T) {
	s := newTestSession(&fakeStore{}, fixedClock(testStart.Add(-time.Minute)), Config{})

	if err := s.Begin(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Begin before open = %v, want ErrInvalidState", err)
	}
	if s.State() != StateNotStarted {
		t.Errorf("state = %s, want NotStarted", s.State())
	}
}

func TestBeginTwice(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store, fixedClock(testStart), Config{})

	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if err := s.Begin(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Begin = %v, want ErrInvalidState", err)
	}
	if starts, _, _ := store.stats(); starts != 1 {
		t.Errorf("start writes = %d, want 1", starts)
	}
}

func TestBeginAdoptsCommittedStart(t *testing.T) {
	// Another replica already committed an earlier start timestamp.
	earlier := testStart.Add(2 * time.Minute)
	store := &fakeStore{startedAt: &earlier}
	s := newTestSession(store, fixedClock(testStart.Add(10*time.Minute)), Config{})

	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !s.StartedAt().Equal(earlier) {
		t.Errorf("startedAt = %s, want the original commit %s", s.StartedAt(), earlier)
	}
}

func TestBeginRetriesThenSucceeds(t *testing.T) {
	store := &fakeStore{failStarts: 2}
	s := newTestSession(store, fixedClock(testStart), Config{RetryAttempts: 3})

	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if starts, _, _ := store.stats(); starts != 3 {
		t.Errorf("start calls = %d, want 3", starts)
	}
	if s.State() != StateInProgress {
		t.Errorf("state = %s, want InProgress", s.State())
	}
}

func TestBeginRetryExhaustion(t *testing.T) {
	store := &fakeStore{failStarts: 10}
	s := newTestSession(store, fixedClock(testStart), Config{RetryAttempts: 3})

	err := s.Begin(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Begin = %v, want ErrStoreUnavailable", err)
	}
	if s.State() != StateNotStarted {
		t.Errorf("state = %s, want NotStarted after failed begin", s.State())
	}
	if starts, _, _ := store.stats(); starts != 3 {
		t.Errorf("start calls = %d, want exactly RetryAttempts", starts)
	}
}

func TestRecordAnswerChannels(t *testing.T) {
	s := newTestSession(&fakeStore{}, fixedClock(testStart), Config{})
	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// MCQ ignores text, free-text ignores option.
	if err := s.RecordAnswer(0, "A", "stray text"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer(1, "A", "my essay"); err != nil {
		t.Fatal(err)
	}
	// BOTH carries one of each, recorded on separate calls.
	if err := s.RecordAnswer(2, "B", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer(2, "", "second channel"); err != nil {
		t.Fatal(err)
	}

	got := s.Answers()
	want := model.AnswerSet{
		0: {Option: "A"},
		1: {Text: "my essay"},
		2: {Option: "B", Text: "second channel"},
	}
	for ord, w := range want {
		if got[ord] != w {
			t.Errorf("answer[%d] = %+v, want %+v", ord, got[ord], w)
		}
	}
}

func TestRecordAnswerReplacesPriorValue(t *testing.T) {
	s := newTestSession(&fakeStore{}, fixedClock(testStart), Config{})
	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.RecordAnswer(0, "A", "")
	s.RecordAnswer(0, "B", "")

	if got := s.Answers()[0].Option; got != "B" {
		t.Errorf("option = %q, want latest value B", got)
	}
}

func TestRecordAnswerBadOrdinal(t *testing.T) {
	s := newTestSession(&fakeStore{}, fixedClock(testStart), Config{})
	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, ordinal := range []int{-1, 3, 99} {
		if err := s.RecordAnswer(ordinal, "A", ""); !errors.Is(err, ErrBadOrdinal) {
			t.Errorf("RecordAnswer(%d) = %v, want ErrBadOrdinal", ordinal, err)
		}
	}
}

func TestNavigateClamps(t *testing.T) {
	s := newTestSession(&fakeStore{}, fixedClock(testStart), Config{})
	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	tests := []struct {
		delta int
		want  int
	}{
		{-1, 0}, // already at first question
		{1, 1},
		{1, 2},
		{1, 2}, // clamped at last question
		{-5, 0},
	}
	for _, tt := range tests {
		got, err := s.Navigate(tt.delta)
		if err != nil {
			t.Fatalf("Navigate(%d): %v", tt.delta, err)
		}
		if got != tt.want {
			t.Errorf("Navigate(%d) = %d, want %d", tt.delta, got, tt.want)
		}
	}
}

func TestSubmitIsTerminal(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store, fixedClock(testStart), Config{})
	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.RecordAnswer(0, "A", "")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.State() != StateSubmitted {
		t.Fatalf("state = %s, want Submitted", s.State())
	}

	if err := s.Submit(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Submit = %v, want ErrInvalidState", err)
	}
	if err := s.RecordAnswer(0, "B", ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("RecordAnswer after submit = %v, want ErrInvalidState", err)
	}
	if _, err := s.Navigate(1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Navigate after submit = %v, want ErrInvalidState", err)
	}

	if _, submits, _ := store.stats(); submits != 1 {
		t.Errorf("submit writes = %d, want 1", submits)
	}
	if store.snapshot[0].Option != "A" {
		t.Errorf("committed snapshot = %+v, want pre-submit answers", store.snapshot)
	}
}

func TestSubmitRetryExhaustionLeavesInProgress(t *testing.T) {
	store := &fakeStore{failSubmits: 10}
	s := newTestSession(store, fixedClock(testStart), Config{RetryAttempts: 2})
	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err := s.Submit(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Submit = %v, want ErrStoreUnavailable", err)
	}
	if s.State() != StateInProgress {
		t.Fatalf("state = %s, want InProgress so the call can be reissued", s.State())
	}

	// Store recovers; the same logical call commits without a duplicate.
	store.mu.Lock()
	store.failSubmits = 0
	store.mu.Unlock()

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("reissued Submit: %v", err)
	}
	if _, _, submitted := store.stats(); !submitted {
		t.Error("attempt never committed")
	}
}

func TestRemaining(t *testing.T) {
	now := testStart.Add(15 * time.Minute)
	startedAt := testStart
	s := Resume(testPaper(), testProfile, &fakeStore{}, fixedClock(now), Config{}, startedAt, nil)
	defer s.Close()

	if got, want := s.Remaining(), 45*time.Minute; got != want {
		t.Errorf("Remaining() = %s, want %s", got, want)
	}
}

func TestRemainingFlooredAtZero(t *testing.T) {
	now := testStart.Add(2 * time.Hour)
	s := Resume(testPaper(), testProfile, &fakeStore{failSubmits: 1000}, fixedClock(now), Config{RetryAttempts: 1}, testStart, nil)
	defer s.Close()

	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining() = %s, want 0", got)
	}
}

func TestTimeoutAutoSubmits(t *testing.T) {
	store := &fakeStore{}
	now := testStart.Add(60*time.Minute - 20*time.Millisecond) // 20ms left on the clock
	done := make(chan model.AnswerSet, 1)
	cfg := Config{OnAutoSubmit: func(snapshot model.AnswerSet) { done <- snapshot }}

	answers := model.AnswerSet{1: {Text: "carried over"}}
	s := Resume(testPaper(), testProfile, store, fixedClock(now), cfg, testStart, answers)
	defer s.Close()

	select {
	case snapshot := <-done:
		if snapshot[1].Text != "carried over" {
			t.Errorf("auto-submit snapshot = %+v, want resumed answers", snapshot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit never fired")
	}

	if s.State() != StateSubmitted {
		t.Errorf("state = %s, want Submitted", s.State())
	}
	if err := s.Submit(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Submit after timeout = %v, want ErrInvalidState", err)
	}
	if _, submits, _ := store.stats(); submits != 1 {
		t.Errorf("submit writes = %d, want 1", submits)
	}
}

func TestTimeoutRearmsWhileStoreDown(t *testing.T) {
	store := &fakeStore{failSubmits: 1}
	now := testStart.Add(60*time.Minute - 10*time.Millisecond)
	done := make(chan model.AnswerSet, 1)
	cfg := Config{RetryAttempts: 1, OnAutoSubmit: func(snapshot model.AnswerSet) { done <- snapshot }}

	s := Resume(testPaper(), testProfile, store, fixedClock(now), cfg, testStart, nil)
	defer s.Close()

	// First firing fails against the store; the re-armed timer retries about
	// a second later and commits.
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("auto-submit never recovered after store came back")
	}

	if _, submits, _ := store.stats(); submits != 2 {
		t.Errorf("submit calls = %d, want failed attempt plus retry", submits)
	}
}

func TestCloseStopsCountdownWithoutSubmitting(t *testing.T) {
	store := &fakeStore{}
	now := testStart.Add(60*time.Minute - 20*time.Millisecond)
	s := Resume(testPaper(), testProfile, store, fixedClock(now), Config{}, testStart, nil)

	s.Close()
	time.Sleep(100 * time.Millisecond)

	if _, submits, _ := store.stats(); submits != 0 {
		t.Errorf("submit calls after Close = %d, want 0", submits)
	}
	if s.State() != StateInProgress {
		t.Errorf("state = %s, want InProgress (attempt stays resumable)", s.State())
	}
}
