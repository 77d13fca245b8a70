package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus enumerates grading states: pending until theory questions are
// manually graded, published once the score is final.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusPublished ResultStatus = "published"
)

// Result is the durable record of a completed attempt. A (user, exam) pair
// has at most one Result ever, enforced by a uniqueness constraint.
type Result struct {
	ID               uuid.UUID       `json:"id"`
	UserID           int             `json:"user_id"`
	ExamID           uuid.UUID       `json:"exam_id"`
	ExamTitle        string          `json:"exam_title,omitempty"`
	Score            float64         `json:"score"`
	TotalMarks       float64         `json:"total_marks"`
	UserAnswers      map[int]Answer  `json:"user_answers"`
	MarksPerQuestion map[int]float64 `json:"marks_per_question"`
	IsPassed         bool            `json:"is_passed"`
	Status           ResultStatus    `json:"status"`
	Remarks          string          `json:"remarks"`
	QuestionRemarks  map[int]string  `json:"question_remarks,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// UpdateResultRequest is the admin grading payload. The caller supplies the
// confirmed total; the server validates only that it does not exceed the
// exam's total marks.
type UpdateResultRequest struct {
	Score            *float64        `json:"score" binding:"required,min=0"`
	IsPassed         *bool           `json:"is_passed" binding:"required"`
	UserAnswers      map[int]Answer  `json:"user_answers" binding:"omitempty"`
	MarksPerQuestion map[int]float64 `json:"marks_per_question" binding:"omitempty"`
	Remarks          *string         `json:"remarks" binding:"omitempty,max=2000"`
	QuestionRemarks  map[int]string  `json:"question_remarks" binding:"omitempty"`
}
