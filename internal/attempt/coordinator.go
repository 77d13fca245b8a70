package attempt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// Reason identifies which trigger initiated a submission.
type Reason string

const (
	ReasonManual  Reason = "manual"
	ReasonTimeout Reason = "time"
	ReasonCheat   Reason = "cheat"
	ReasonUnload  Reason = "unload"
)

// Submitter is the server acceptance contract. Implementations must be
// idempotent: submitting an attempt that already has a Result returns the
// stored Result, not an error.
type Submitter interface {
	Submit(ctx context.Context, examID uuid.UUID, userID int, answers map[int]model.Answer) (*model.Result, error)
}

// Outcome reports what a trigger did.
type Outcome struct {
	// Dropped means another trigger already owns the submission; this one
	// was a no-op (not queued, not retried).
	Dropped  bool
	Terminal bool
	Reason   Reason
	Result   *model.Result
	Err      error
}

// Coordinator funnels all submission triggers into at most one honored
// submission per attempt. The Active → Submitting transition happens under
// the lock, before any I/O, so triggers racing in the same instant cannot
// both pass the "not yet submitted" check.
type Coordinator struct {
	mu    sync.Mutex
	phase Phase

	state     *State
	store     Store
	submitter Submitter
	log       zerolog.Logger

	// onTerminal runs once when the attempt reaches the terminal phase
	// (registry eviction, timer stop).
	onTerminal func()
}

// NewCoordinator creates a Coordinator in the active phase.
func NewCoordinator(state *State, store Store, submitter Submitter, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		state:     state,
		store:     store,
		submitter: submitter,
		log:       log.With().Str("component", "coordinator").Logger(),
	}
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Active reports whether the attempt still accepts input and triggers.
func (c *Coordinator) Active() bool {
	return c.Phase() == PhaseActive
}

// Trigger attempts to submit. The first trigger to arrive wins; all others
// observe a non-active phase and are dropped.
func (c *Coordinator) Trigger(ctx context.Context, reason Reason) Outcome {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return Outcome{Dropped: true, Reason: reason}
	}
	c.phase = PhaseSubmitting
	// Snapshot the answers under the lock; late edits must not bleed into
	// an in-flight submission.
	answers := make(map[int]model.Answer, len(c.state.Answers))
	for k, v := range c.state.Answers {
		answers[k] = v
	}
	c.mu.Unlock()

	result, err := c.submitter.Submit(ctx, c.state.ExamID, c.state.UserID, answers)
	if err != nil {
		if reason == ReasonManual || reason == ReasonUnload {
			// Recoverable: release the lock. A manual submit can be
			// retried by the student; a failed unload flush leaves the
			// attempt resumable, and the deadline sweeper submits it at
			// expiry. State is destroyed only once a Result exists.
			c.mu.Lock()
			c.phase = PhaseActive
			c.mu.Unlock()
			c.log.Warn().Err(err).
				Str("exam_id", c.state.ExamID.String()).
				Int("user_id", c.state.UserID).
				Str("reason", string(reason)).
				Msg("Submission failed, lock released")
			return Outcome{Reason: reason, Err: err}
		}

		// Timeout and cheat are irrevocable: a stuck exam is worse than
		// a possibly-lost submission, so the attempt goes terminal and
		// local state is cleared regardless.
		c.log.Error().Err(err).
			Str("exam_id", c.state.ExamID.String()).
			Int("user_id", c.state.UserID).
			Str("reason", string(reason)).
			Msg("Forced submission failed, terminating anyway")
		c.finalize(ctx)
		return Outcome{Terminal: true, Reason: reason, Err: err}
	}

	c.finalize(ctx)
	c.log.Info().
		Str("exam_id", c.state.ExamID.String()).
		Int("user_id", c.state.UserID).
		Str("reason", string(reason)).
		Float64("score", result.Score).
		Msg("Attempt submitted")
	return Outcome{Terminal: true, Reason: reason, Result: result}
}

func (c *Coordinator) finalize(ctx context.Context) {
	c.mu.Lock()
	c.phase = PhaseTerminal
	hook := c.onTerminal
	c.onTerminal = nil
	c.mu.Unlock()

	if err := c.store.Clear(ctx, c.state.ExamID, c.state.UserID); err != nil {
		c.log.Error().Err(err).
			Str("exam_id", c.state.ExamID.String()).
			Int("user_id", c.state.UserID).
			Msg("Failed to clear attempt state")
	}
	if hook != nil {
		hook()
	}
}
