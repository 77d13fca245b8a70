package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ    QuestionType = "mcq"
	QuestionTypeTheory QuestionType = "theory"
)

// Question is a single exam question. Questions are stored embedded in the
// exam row (JSONB) and addressed by their dense index 0..N-1.
type Question struct {
	Type          QuestionType `json:"type"`
	QuestionText  string       `json:"question_text"`
	Options       []string     `json:"options,omitempty"`
	CorrectOption int          `json:"correct_option,omitempty"`
	Marks         float64      `json:"marks"`
}

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AccessCode      string     `json:"access_code,omitempty"`
	IsPublished     bool       `json:"is_published"`
	CreatedBy       int        `json:"created_by"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      float64    `json:"total_marks"`
	PassingMarks    float64    `json:"passing_marks"`
	ExamRules       []string   `json:"exam_rules"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasTheory reports whether any question requires manual grading.
func (e *Exam) HasTheory() bool {
	for _, q := range e.Questions {
		if q.Type == QuestionTypeTheory {
			return true
		}
	}
	return false
}

// StudentQuestion is a question without the correct option, sent to students.
type StudentQuestion struct {
	Type         QuestionType `json:"type"`
	QuestionText string       `json:"question_text"`
	Options      []string     `json:"options,omitempty"`
	Marks        float64      `json:"marks"`
}

// ExamPayload is the Redis-cached payload sent to students taking the exam.
type ExamPayload struct {
	ExamID          uuid.UUID         `json:"exam_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	DurationMinutes int               `json:"duration_minutes"`
	TotalMarks      float64           `json:"total_marks"`
	PassingMarks    float64           `json:"passing_marks"`
	ExamRules       []string          `json:"exam_rules"`
	Questions       []StudentQuestion `json:"questions"`
}

// QuestionRequest is one question in an exam creation payload.
type QuestionRequest struct {
	Type          string   `json:"type" binding:"required,oneof=mcq theory"`
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"omitempty,max=10,dive,max=500"`
	CorrectOption int      `json:"correct_option" binding:"min=0"`
	Marks         float64  `json:"marks" binding:"required,gt=0"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string            `json:"title" binding:"required,min=3,max=255"`
	Description     string            `json:"description" binding:"required,max=5000"`
	AccessCode      string            `json:"access_code" binding:"required,min=4,max=20"`
	DurationMinutes int               `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalMarks      float64           `json:"total_marks" binding:"required,gt=0"`
	PassingMarks    float64           `json:"passing_marks" binding:"min=0"`
	ExamRules       []string          `json:"exam_rules" binding:"omitempty,dive,max=500"`
	IsPublished     bool              `json:"is_published"`
	Questions       []QuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// JoinExamRequest is the payload for a student entering an exam by code.
type JoinExamRequest struct {
	AccessCode string `json:"access_code" binding:"required,min=4,max=20"`
}

// SubmitExamRequest is the payload for the submission endpoint. UserAnswers
// tolerates loose values (bare numbers and strings) for unload flushes.
type SubmitExamRequest struct {
	ExamID      string         `json:"exam_id" binding:"required,uuid"`
	UserAnswers map[int]Answer `json:"user_answers"`
}

// FlushRequest is the best-effort terminal-flush payload fired from unload
// handlers; the exam is identified by the URL path.
type FlushRequest struct {
	UserAnswers map[int]Answer `json:"user_answers"`
}
