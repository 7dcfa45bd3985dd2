// Package grader computes scores for submitted attempts: automatic marking
// for multiple-choice channels, instructor verdicts for free-text channels.
// Scoring is pure; persistence of the published result lives in the grading
// service.
package grader

import "github.com/paperdesk/paperdesk-backend/internal/model"

// QuestionScore is the per-question breakdown included in a grading review.
type QuestionScore struct {
	Ordinal     int                `json:"ordinal"`
	Kind        model.QuestionKind `json:"kind"`
	Option      string             `json:"option,omitempty"`
	OptionRight bool               `json:"option_right"`
	Text        string             `json:"text,omitempty"`
	Verdict     model.Verdict      `json:"verdict,omitempty"`
	Earned      int                `json:"earned"`
}

// Score is an aggregated grading outcome for one attempt.
type Score struct {
	TotalMarks    int             `json:"total_marks"`
	ObtainedMarks int             `json:"obtained_marks"`
	Percentage    float64         `json:"percentage"`
	Questions     []QuestionScore `json:"questions"`
}

// Grade scores a submitted answer set against the paper's questions.
// Every question contributes exactly one mark to the total regardless of
// kind. A BOTH question has two answer channels but is capped at one mark:
// being right on both channels never counts twice. Verdicts of Pending or
// Incorrect earn nothing.
func Grade(questions []model.Question, answers model.AnswerSet, verdicts model.VerdictSet) Score {
	s := Score{
		TotalMarks: len(questions),
		Questions:  make([]QuestionScore, 0, len(questions)),
	}

	for i := range questions {
		q := &questions[i]
		qs := QuestionScore{Ordinal: q.Ordinal, Kind: q.Kind}

		ans, answered := answers[q.Ordinal]

		if q.Kind.HasOptions() && answered && ans.Option != "" {
			qs.Option = ans.Option
			if ans.Option == q.CorrectOption {
				qs.OptionRight = true
				qs.Earned = 1
			}
		}

		if q.Kind.HasFreeText() && answered && ans.Text != "" {
			qs.Text = ans.Text
			v, ok := verdicts[q.Ordinal]
			if !ok {
				v = model.VerdictPending
			}
			qs.Verdict = v
			if v == model.VerdictCorrect {
				qs.Earned = 1 // cap: already-earned option mark is not stacked
			}
		}

		s.ObtainedMarks += qs.Earned
		s.Questions = append(s.Questions, qs)
	}

	if s.TotalMarks > 0 {
		s.Percentage = float64(s.ObtainedMarks) / float64(s.TotalMarks) * 100
	}

	return s
}
