package attempt

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// ErrNotActive is returned when an event arrives for an attempt that has
// already reached a terminal (or submitting) phase.
var ErrNotActive = errors.New("attempt is not active")

// Attempt is one live attempt: its state machine plus the timer, monitor,
// and coordinator running against it.
type Attempt struct {
	mu    sync.Mutex
	state *State

	store   Store
	timer   *Timer
	monitor *Monitor
	coord   *Coordinator
}

// ExamID identifies the exam under attempt.
func (a *Attempt) ExamID() uuid.UUID { return a.state.ExamID }

// UserID identifies the student.
func (a *Attempt) UserID() int { return a.state.UserID }

// Phase returns the lifecycle phase.
func (a *Attempt) Phase() Phase { return a.coord.Phase() }

// RemainingSeconds returns whole seconds until the deadline, clamped at zero.
func (a *Attempt) RemainingSeconds() int { return a.timer.RemainingSeconds() }

// SaveAnswer records an answer and mirrors it write-through to the store.
func (a *Attempt) SaveAnswer(ctx context.Context, index int, ans model.Answer) error {
	if !a.coord.Active() {
		return ErrNotActive
	}
	a.mu.Lock()
	a.state.Answers[index] = ans
	a.mu.Unlock()
	return a.store.SaveAnswer(ctx, a.state.ExamID, a.state.UserID, index, ans)
}

// MergeAnswers folds a loose answer payload (REST submit, unload flush)
// into the in-memory state before a trigger fires. Ignored once the
// attempt has left the active phase.
func (a *Attempt) MergeAnswers(answers map[int]model.Answer) {
	if len(answers) == 0 || !a.coord.Active() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for idx, ans := range answers {
		a.state.Answers[idx] = ans
	}
}

// ToggleReview flips the review mark on a question and persists the set.
// Returns the new marked state.
func (a *Attempt) ToggleReview(ctx context.Context, index int) (bool, error) {
	if !a.coord.Active() {
		return false, ErrNotActive
	}
	a.mu.Lock()
	if a.state.MarkedForReview[index] {
		delete(a.state.MarkedForReview, index)
	} else {
		a.state.MarkedForReview[index] = true
	}
	marked := a.state.MarkedForReview[index]
	review := make(map[int]bool, len(a.state.MarkedForReview))
	for k, v := range a.state.MarkedForReview {
		review[k] = v
	}
	a.mu.Unlock()

	if err := a.store.SaveReview(ctx, a.state.ExamID, a.state.UserID, review); err != nil {
		return marked, err
	}
	return marked, nil
}

// Visit marks a question as seen. Visited state drives the palette UI only,
// never grading.
func (a *Attempt) Visit(ctx context.Context, index int) error {
	if !a.coord.Active() {
		return ErrNotActive
	}
	a.mu.Lock()
	a.state.Visited[index] = true
	a.mu.Unlock()
	return a.store.SaveVisited(ctx, a.state.ExamID, a.state.UserID, index)
}

// RecordViolation counts a proctoring event. Below threshold it returns a
// warning verdict; crossing a threshold triggers the coordinator with
// reason "cheat" and returns the submission outcome alongside the verdict.
func (a *Attempt) RecordViolation(ctx context.Context, kind ViolationKind) (Verdict, *Outcome, error) {
	if !a.coord.Active() {
		return Verdict{}, nil, ErrNotActive
	}

	verdict := a.monitor.Record(kind)
	if verdict.Exempt {
		return verdict, nil, nil
	}

	if err := a.store.SaveStrikes(ctx, a.state.ExamID, a.state.UserID, a.monitor.Snapshot()); err != nil {
		return verdict, nil, err
	}

	if verdict.Terminate {
		out := a.Submit(ctx, ReasonCheat)
		return verdict, &out, nil
	}
	return verdict, nil, nil
}

// Submit fires one of the four submission triggers through the coordinator.
func (a *Attempt) Submit(ctx context.Context, reason Reason) Outcome {
	out := a.coord.Trigger(ctx, reason)
	if out.Terminal {
		a.timer.Stop()
	}
	return out
}

// Overview is the client-facing attempt snapshot sent on load/resume.
type Overview struct {
	ExamID             uuid.UUID            `json:"exam_id"`
	Answers            map[int]model.Answer `json:"answers"`
	MarkedForReview    []int                `json:"marked_for_review"`
	Visited            []int                `json:"visited"`
	DeadlineMS         int64                `json:"deadline_ms"`
	RemainingSeconds   int                  `json:"remaining_seconds"`
	Strikes            Strikes              `json:"strikes"`
	ViolationCount     int                  `json:"violation_count"`
	FullscreenRequired bool                 `json:"fullscreen_required"`
	Phase              string               `json:"phase"`
}

// Overview builds the snapshot the client renders on mount.
func (a *Attempt) Overview() Overview {
	a.mu.Lock()
	answers := make(map[int]model.Answer, len(a.state.Answers))
	for k, v := range a.state.Answers {
		answers[k] = v
	}
	review := sortedIndexes(a.state.MarkedForReview)
	visited := sortedIndexes(a.state.Visited)
	deadline := a.state.DeadlineMS
	a.mu.Unlock()

	strikes := a.monitor.Snapshot()
	return Overview{
		ExamID:             a.state.ExamID,
		Answers:            answers,
		MarkedForReview:    review,
		Visited:            visited,
		DeadlineMS:         deadline,
		RemainingSeconds:   a.timer.RemainingSeconds(),
		Strikes:            strikes,
		ViolationCount:     strikes.Total(),
		FullscreenRequired: a.monitor.FullscreenRequired(),
		Phase:              a.coord.Phase().String(),
	}
}

func sortedIndexes(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for idx, ok := range set {
		if ok {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// ResultChecker answers whether a (user, exam) pair already has a Result.
type ResultChecker interface {
	HasResult(ctx context.Context, examID uuid.UUID, userID int) (bool, error)
}

// ExamProvider supplies exam definitions to the loader.
type ExamProvider interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

type attemptKey struct {
	examID uuid.UUID
	userID int
}

// Engine owns every live attempt in this process. All events for one
// (exam, user) pair funnel through a single Attempt, whichever connection
// they arrive on — a second tab joins the same state machine instead of
// forking the attempt.
type Engine struct {
	mu       sync.Mutex
	attempts map[attemptKey]*Attempt

	store     Store
	submitter Submitter
	results   ResultChecker
	exams     ExamProvider
	clock     Clock
	log       zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store Store, submitter Submitter, results ResultChecker, exams ExamProvider, clock Clock, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		attempts:  make(map[attemptKey]*Attempt),
		store:     store,
		submitter: submitter,
		results:   results,
		exams:     exams,
		clock:     clock,
		log:       log.With().Str("component", "attempt_engine").Logger(),
	}
}

// Get returns the live attempt for (exam, user) if one is resident.
func (e *Engine) Get(examID uuid.UUID, userID int) (*Attempt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.attempts[attemptKey{examID, userID}]
	return a, ok
}

func (e *Engine) evict(k attemptKey) {
	e.mu.Lock()
	delete(e.attempts, k)
	e.mu.Unlock()
}
