package grading

import (
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// Outcome is the deterministic grading output for one submission.
type Outcome struct {
	Score            float64
	TotalMarks       float64
	MarksPerQuestion map[int]float64
	IsPassed         bool
	Status           model.ResultStatus
}

// Grade scores a submission against an exam. MCQ questions award full marks
// iff the submitted answer coerces to the correct option index; theory
// questions award 0 at submission time and stay pending for manual grading.
// The outcome is identical across repeated calls with the same inputs.
func Grade(exam *model.Exam, answers map[int]model.Answer) Outcome {
	out := Outcome{
		TotalMarks:       exam.TotalMarks,
		MarksPerQuestion: make(map[int]float64, len(exam.Questions)),
	}

	for i, q := range exam.Questions {
		out.MarksPerQuestion[i] = 0

		if q.Type != model.QuestionTypeMCQ {
			continue
		}

		ans, ok := answers[i]
		if !ok {
			continue
		}
		selected, ok := ans.OptionIndex()
		if !ok {
			continue
		}
		if selected == q.CorrectOption {
			out.MarksPerQuestion[i] = q.Marks
			out.Score += q.Marks
		}
	}

	out.IsPassed = out.Score >= exam.PassingMarks

	// Any theory question forces manual grading before the result is final.
	if exam.HasTheory() {
		out.Status = model.ResultStatusPending
	} else {
		out.Status = model.ResultStatusPublished
	}

	return out
}
