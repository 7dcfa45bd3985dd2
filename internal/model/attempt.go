package model

import "time"

// Answer is a candidate's recorded answer for one question. A question of
// kind BOTH may carry both channels at once; each channel replaces its prior
// value on re-record.
type Answer struct {
	Option string `json:"option,omitempty"`
	Text   string `json:"text,omitempty"`
}

// AnswerSet maps question ordinal to the recorded answer. JSON object keys
// are the decimal ordinals, matching the jsonb column layout.
type AnswerSet map[int]Answer

// Clone returns a deep copy so a snapshot cannot be mutated after submission.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ResultStatus enumerates result publication states.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "PENDING"
	ResultStatusPublished ResultStatus = "PUBLISHED"
)

// Result is the immutable published outcome of a graded attempt.
type Result struct {
	TotalMarks    int          `json:"total_marks"`
	ObtainedMarks int          `json:"obtained_marks"`
	Percentage    float64      `json:"percentage"`
	DeclaredAt    time.Time    `json:"declared_at"`
	Status        ResultStatus `json:"status"`
}

// AttemptRecord is the persisted state of one candidate's pass at a paper,
// keyed by (paper code, candidate id). StartedAt and AttemptedAt are each
// set at most once; a non-nil AttemptedAt is terminal.
type AttemptRecord struct {
	PaperCode   string     `json:"paper_code"`
	CandidateID int        `json:"candidate_id"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	AttemptedAt *time.Time `json:"attempted_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Answers     AnswerSet  `json:"answers,omitempty"`
	Result      *Result    `json:"result,omitempty"`
}

// Attempted reports whether the record has reached its terminal submitted state.
func (r *AttemptRecord) Attempted() bool {
	return r != nil && r.AttemptedAt != nil
}

// Started reports whether a start timestamp has been durably recorded.
func (r *AttemptRecord) Started() bool {
	return r != nil && r.StartedAt != nil
}

// Published reports whether a result has been published for the record.
func (r *AttemptRecord) Published() bool {
	return r != nil && r.Result != nil && r.Result.Status == ResultStatusPublished
}

// Verdict is an instructor's manual call on a free-text answer.
type Verdict string

const (
	VerdictPending   Verdict = "Pending"
	VerdictCorrect   Verdict = "Correct"
	VerdictIncorrect Verdict = "Incorrect"
)

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPending, VerdictCorrect, VerdictIncorrect:
		return true
	}
	return false
}

// VerdictSet maps question ordinal to a manual verdict for one candidate.
// Verdicts are transient review state; they are folded into the result at
// publication and never stored on the AttemptRecord itself.
type VerdictSet map[int]Verdict

// RecordAnswerRequest is the payload for recording one answer mid-attempt.
type RecordAnswerRequest struct {
	Ordinal *int   `json:"ordinal" binding:"required,min=0"`
	Option  string `json:"option" binding:"omitempty,max=10"`
	Text    string `json:"text" binding:"omitempty,max=2000"`
}

// StageVerdictRequest is the payload for staging a manual verdict during review.
type StageVerdictRequest struct {
	Ordinal *int   `json:"ordinal" binding:"required,min=0"`
	Verdict string `json:"verdict" binding:"required,oneof=Pending Correct Incorrect"`
}
