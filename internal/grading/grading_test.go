package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

func twoMCQExam() *model.Exam {
	return &model.Exam{
		ID:           uuid.New(),
		Title:        "Go Basics",
		TotalMarks:   10,
		PassingMarks: 5,
		Questions: []model.Question{
			{Type: model.QuestionTypeMCQ, QuestionText: "Q1", Options: []string{"a", "b", "c"}, CorrectOption: 0, Marks: 5},
			{Type: model.QuestionTypeMCQ, QuestionText: "Q2", Options: []string{"a", "b", "c"}, CorrectOption: 1, Marks: 5},
		},
	}
}

func TestGrade_MCQOnly(t *testing.T) {
	exam := twoMCQExam()

	got := Grade(exam, map[int]model.Answer{
		0: model.MCQAnswer(0),
		1: model.MCQAnswer(2),
	})

	if got.Score != 5 {
		t.Fatalf("score = %v, want 5", got.Score)
	}
	if !got.IsPassed {
		t.Fatal("expected pass at exactly passing marks")
	}
	if got.Status != model.ResultStatusPublished {
		t.Fatalf("status = %q, want published", got.Status)
	}
	if got.MarksPerQuestion[0] != 5 || got.MarksPerQuestion[1] != 0 {
		t.Fatalf("marks per question = %v", got.MarksPerQuestion)
	}
}

func TestGrade_TheoryForcesPending(t *testing.T) {
	exam := twoMCQExam()
	exam.TotalMarks = 20
	exam.Questions = append(exam.Questions, model.Question{
		Type: model.QuestionTypeTheory, QuestionText: "Explain interfaces", Marks: 10,
	})

	got := Grade(exam, map[int]model.Answer{
		0: model.MCQAnswer(0),
		1: model.MCQAnswer(1),
		2: model.TheoryAnswer("an interface is a method set"),
	})

	if got.Status != model.ResultStatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	// Theory contributes nothing at submission time.
	if got.Score != 10 {
		t.Fatalf("score = %v, want 10 (MCQ portion only)", got.Score)
	}
	if got.MarksPerQuestion[2] != 0 {
		t.Fatalf("theory question awarded %v at submission", got.MarksPerQuestion[2])
	}
}

func TestGrade_Deterministic(t *testing.T) {
	exam := twoMCQExam()
	answers := map[int]model.Answer{0: model.MCQAnswer(0), 1: model.MCQAnswer(1)}

	first := Grade(exam, answers)
	for i := 0; i < 10; i++ {
		again := Grade(exam, answers)
		if again.Score != first.Score || again.IsPassed != first.IsPassed || again.Status != first.Status {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
		for q, m := range first.MarksPerQuestion {
			if again.MarksPerQuestion[q] != m {
				t.Fatalf("run %d: question %d = %v, want %v", i, q, again.MarksPerQuestion[q], m)
			}
		}
	}
}

func TestGrade_Coercion(t *testing.T) {
	exam := twoMCQExam()

	tests := []struct {
		name   string
		answer model.Answer
		want   float64
	}{
		{name: "numeric string coerces", answer: model.TheoryAnswer("0"), want: 5},
		{name: "padded numeric string", answer: model.TheoryAnswer(" 0 "), want: 5},
		{name: "non-numeric string is wrong", answer: model.TheoryAnswer("zero"), want: 0},
		{name: "wrong option", answer: model.MCQAnswer(2), want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(exam, map[int]model.Answer{0: tc.answer})
			if got.MarksPerQuestion[0] != tc.want {
				t.Fatalf("marks = %v, want %v", got.MarksPerQuestion[0], tc.want)
			}
		})
	}
}

func TestGrade_UnansweredAndEmpty(t *testing.T) {
	exam := twoMCQExam()

	got := Grade(exam, nil)
	if got.Score != 0 {
		t.Fatalf("score = %v, want 0", got.Score)
	}
	if got.IsPassed {
		t.Fatal("empty submission must not pass with passing marks > 0")
	}
	if len(got.MarksPerQuestion) != 2 {
		t.Fatalf("marks map must cover every question, got %v", got.MarksPerQuestion)
	}
}
