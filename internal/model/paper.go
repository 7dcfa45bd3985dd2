package model

import (
	"fmt"
	"time"
)

// PaperStatus enumerates the lifecycle states of an exam paper.
type PaperStatus string

const (
	PaperStatusDraft     PaperStatus = "DRAFT"
	PaperStatusPublished PaperStatus = "PUBLISHED"
)

// QuestionKind determines which answer channels a question accepts.
type QuestionKind string

const (
	QuestionKindMultipleChoice QuestionKind = "MULTIPLE_CHOICE"
	QuestionKindFreeText       QuestionKind = "FREE_TEXT"
	QuestionKindBoth           QuestionKind = "BOTH"
)

// HasOptions reports whether the kind carries a multiple-choice channel.
func (k QuestionKind) HasOptions() bool {
	return k == QuestionKindMultipleChoice || k == QuestionKindBoth
}

// HasFreeText reports whether the kind carries a free-text channel.
func (k QuestionKind) HasFreeText() bool {
	return k == QuestionKindFreeText || k == QuestionKindBoth
}

// Paper is a published exam definition: schedule, eligibility, and questions.
// A paper is content-frozen once published; attempts reference it by code.
type Paper struct {
	Code            string      `json:"code"`
	Title           string      `json:"title"`
	InstructorID    int         `json:"instructor_id"`
	FacultyTrack    string      `json:"faculty_track"`
	Semester        string      `json:"semester"`
	ScheduledStart  time.Time   `json:"scheduled_start"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          PaperStatus `json:"status"`
	Questions       []Question  `json:"questions,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Duration returns the attempt window as a time.Duration.
func (p *Paper) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Deadline returns the latest instant an attempt started at startedAt may run to.
func (p *Paper) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(p.Duration())
}

// Question is a single prompt within a paper, identified by its ordinal position.
type Question struct {
	Ordinal       int               `json:"ordinal"`
	Prompt        string            `json:"prompt"`
	Kind          QuestionKind      `json:"kind"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectOption string            `json:"correct_option,omitempty"`
}

// Validate checks the option-set invariant: kinds with a multiple-choice
// channel must designate a correct option that exists in the option set.
func (q *Question) Validate() error {
	if !q.Kind.HasOptions() {
		return nil
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("question %d: kind %s requires options", q.Ordinal, q.Kind)
	}
	if _, ok := q.Options[q.CorrectOption]; !ok {
		return fmt.Errorf("question %d: correct option %q not in option set", q.Ordinal, q.CorrectOption)
	}
	return nil
}

// QuestionForCandidate is a question stripped of its correct option,
// safe to ship to a candidate mid-attempt.
type QuestionForCandidate struct {
	Ordinal int               `json:"ordinal"`
	Prompt  string            `json:"prompt"`
	Kind    QuestionKind      `json:"kind"`
	Options map[string]string `json:"options,omitempty"`
}

// PaperPayload is the Redis-cached paper sent to candidates (no correct options).
type PaperPayload struct {
	Code            string                 `json:"code"`
	Title           string                 `json:"title"`
	DurationMinutes int                    `json:"duration_minutes"`
	Questions       []QuestionForCandidate `json:"questions"`
}

// CreatePaperRequest is the payload for creating a new draft paper.
type CreatePaperRequest struct {
	Code            string     `json:"code" binding:"required,min=2,max=32,alphanum"`
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	FacultyTrack    string     `json:"faculty_track" binding:"required,max=64"`
	Semester        string     `json:"semester" binding:"required,max=16"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"required"`
	DurationMinutes *int       `json:"duration_minutes" binding:"required,min=0,max=480"`
}

// UpdatePaperRequest is the payload for editing a draft paper.
type UpdatePaperRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	FacultyTrack    string     `json:"faculty_track" binding:"omitempty,max=64"`
	Semester        string     `json:"semester" binding:"omitempty,max=16"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,min=0,max=480"`
}

// QuestionRequest is one question in a ReplaceQuestionsRequest.
type QuestionRequest struct {
	Prompt        string            `json:"prompt" binding:"required,min=1,max=2000"`
	Kind          string            `json:"kind" binding:"required,oneof=MULTIPLE_CHOICE FREE_TEXT BOTH"`
	Options       map[string]string `json:"options" binding:"omitempty"`
	CorrectOption string            `json:"correct_option" binding:"omitempty,max=10"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a draft paper's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
