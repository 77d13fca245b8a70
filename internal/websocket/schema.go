package websocket

import (
	"github.com/scoreveda/scoreveda-backend/internal/attempt"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionReview    Action = "review"
	ActionVisit     Action = "visit"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest saves a single answer by question index.
type AnswerRequest struct {
	Action   Action       `json:"action"`
	Question int          `json:"question"`
	Answer   model.Answer `json:"answer"`
}

// ReviewRequest toggles the mark-for-review flag on a question.
type ReviewRequest struct {
	Action   Action `json:"action"`
	Question int    `json:"question"`
}

// VisitRequest marks a question as visited for the palette.
type VisitRequest struct {
	Action   Action `json:"action"`
	Question int    `json:"question"`
}

// ViolationRequest reports a proctoring event observed by the client.
type ViolationRequest struct {
	Action Action                `json:"action"`
	Kind   attempt.ViolationKind `json:"kind"`
}

// SubmitRequest finishes the attempt. Answers, when present, are merged
// before the submission is triggered so a final flush is not lost.
type SubmitRequest struct {
	Action  Action               `json:"action"`
	Answers map[int]model.Answer `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAttempt    Event = "attempt"
	EventSaved      Event = "saved"
	EventWarning    Event = "warning"
	EventTerminated Event = "terminated"
	EventGraded     Event = "graded"
	EventPong       Event = "pong"
	EventError      Event = "error"
)

// AttemptResponse carries the full attempt snapshot sent on connect.
type AttemptResponse struct {
	Event   Event            `json:"event"`
	Attempt attempt.Overview `json:"attempt"`
}

// SavedResponse acknowledges an answer/review/visit mutation.
type SavedResponse struct {
	Event    Event  `json:"event"`
	Action   Action `json:"action"`
	Question int    `json:"question"`
	Marked   bool   `json:"marked,omitempty"`
}

// WarningResponse reports a below-threshold proctoring strike.
type WarningResponse struct {
	Event   Event           `json:"event"`
	Verdict attempt.Verdict `json:"verdict"`
}

// TerminatedResponse tells the client the attempt reached a terminal phase.
type TerminatedResponse struct {
	Event  Event          `json:"event"`
	Reason attempt.Reason `json:"reason"`
	Result *model.Result  `json:"result,omitempty"`
}

// GradedResponse carries the result of a successful submission.
type GradedResponse struct {
	Event  Event         `json:"event"`
	Result *model.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}
