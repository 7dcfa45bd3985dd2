package grader

import (
	"math"
	"testing"

	"github.com/paperdesk/paperdesk-backend/internal/model"
)

func mcq(ordinal int, correct string) model.Question {
	return model.Question{
		Ordinal:       ordinal,
		Prompt:        "q",
		Kind:          model.QuestionKindMultipleChoice,
		Options:       map[string]string{"A": "a", "B": "b", "C": "c"},
		CorrectOption: correct,
	}
}

func freeText(ordinal int) model.Question {
	return model.Question{Ordinal: ordinal, Prompt: "q", Kind: model.QuestionKindFreeText}
}

func both(ordinal int, correct string) model.Question {
	q := mcq(ordinal, correct)
	q.Kind = model.QuestionKindBoth
	return q
}

func TestGradeMultipleChoice(t *testing.T) {
	questions := []model.Question{mcq(0, "A"), mcq(1, "B"), mcq(2, "C")}
	answers := model.AnswerSet{
		0: {Option: "A"}, // right
		1: {Option: "C"}, // wrong
		// 2 unanswered
	}

	s := Grade(questions, answers, nil)

	if s.TotalMarks != 3 || s.ObtainedMarks != 1 {
		t.Fatalf("marks = %d/%d, want 1/3", s.ObtainedMarks, s.TotalMarks)
	}
	if !s.Questions[0].OptionRight || s.Questions[1].OptionRight {
		t.Errorf("option flags wrong: %+v", s.Questions[:2])
	}
	if s.Questions[2].Earned != 0 || s.Questions[2].Option != "" {
		t.Errorf("unanswered question scored: %+v", s.Questions[2])
	}
}

func TestGradeFreeTextVerdicts(t *testing.T) {
	questions := []model.Question{freeText(0), freeText(1), freeText(2)}
	answers := model.AnswerSet{
		0: {Text: "right answer"},
		1: {Text: "wrong answer"},
		2: {Text: "not reviewed yet"},
	}
	verdicts := model.VerdictSet{
		0: model.VerdictCorrect,
		1: model.VerdictIncorrect,
		// 2 has no verdict: defaults to Pending
	}

	s := Grade(questions, answers, verdicts)

	if s.ObtainedMarks != 1 {
		t.Fatalf("obtained = %d, want 1", s.ObtainedMarks)
	}
	if s.Questions[2].Verdict != model.VerdictPending {
		t.Errorf("missing verdict = %q, want Pending", s.Questions[2].Verdict)
	}
	if s.Questions[2].Earned != 0 {
		t.Error("pending verdict earned a mark")
	}
}

func TestGradeBothCapsAtOneMark(t *testing.T) {
	tests := []struct {
		name    string
		answer  model.Answer
		verdict model.Verdict
		hasV    bool
		want    int
	}{
		{"both channels right still one mark", model.Answer{Option: "A", Text: "t"}, model.VerdictCorrect, true, 1},
		{"option right text pending", model.Answer{Option: "A", Text: "t"}, "", false, 1},
		{"option wrong text correct", model.Answer{Option: "B", Text: "t"}, model.VerdictCorrect, true, 1},
		{"option wrong text incorrect", model.Answer{Option: "B", Text: "t"}, model.VerdictIncorrect, true, 0},
		{"option only right", model.Answer{Option: "A"}, "", false, 1},
		{"text only correct", model.Answer{Text: "t"}, model.VerdictCorrect, true, 1},
		{"nothing answered", model.Answer{}, "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts := model.VerdictSet{}
			if tt.hasV {
				verdicts[0] = tt.verdict
			}
			s := Grade([]model.Question{both(0, "A")}, model.AnswerSet{0: tt.answer}, verdicts)
			if s.ObtainedMarks != tt.want {
				t.Errorf("obtained = %d, want %d", s.ObtainedMarks, tt.want)
			}
			if s.TotalMarks != 1 {
				t.Errorf("total = %d, want 1", s.TotalMarks)
			}
		})
	}
}

func TestGradePercentage(t *testing.T) {
	questions := []model.Question{mcq(0, "A"), mcq(1, "A"), mcq(2, "A")}
	answers := model.AnswerSet{0: {Option: "A"}}

	s := Grade(questions, answers, nil)

	want := 100.0 / 3.0
	if math.Abs(s.Percentage-want) > 1e-9 {
		t.Errorf("percentage = %f, want %f", s.Percentage, want)
	}
}

func TestGradeEmptyPaper(t *testing.T) {
	s := Grade(nil, nil, nil)
	if s.TotalMarks != 0 || s.ObtainedMarks != 0 || s.Percentage != 0 {
		t.Errorf("empty paper score = %+v, want zeroes", s)
	}
}
