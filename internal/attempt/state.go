package attempt

import (
	"github.com/google/uuid"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// Phase is the attempt lifecycle phase. The only legal transitions are
// Active → Submitting → Terminal, plus Submitting → Active when a manual
// submission fails and the lock is released for retry.
type Phase int32

const (
	PhaseActive Phase = iota
	PhaseSubmitting
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseSubmitting:
		return "submitting"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Strikes holds per-category violation counters. Counters only grow; they
// are never reset during an attempt.
type Strikes struct {
	Visibility int `json:"visibility"`
	Fullscreen int `json:"fullscreen"`
	BackNav    int `json:"back_nav"`
}

// Total is the attempt's overall violation count.
func (s Strikes) Total() int {
	return s.Visibility + s.Fullscreen + s.BackNav
}

// State is the in-memory attempt state for one (exam, user) pair. Every
// mutation is mirrored write-through to the Store so a reload resumes
// instead of restarting. Synchronization lives in Attempt, not here.
type State struct {
	ExamID          uuid.UUID
	UserID          int
	Answers         map[int]model.Answer
	MarkedForReview map[int]bool
	Visited         map[int]bool
	// DeadlineMS is the absolute auto-submit instant (epoch ms), computed
	// once at attempt start and never recomputed.
	DeadlineMS int64
}

func newState(examID uuid.UUID, userID int, deadlineMS int64) *State {
	return &State{
		ExamID:          examID,
		UserID:          userID,
		Answers:         make(map[int]model.Answer),
		MarkedForReview: make(map[int]bool),
		Visited:         make(map[int]bool),
		DeadlineMS:      deadlineMS,
	}
}
