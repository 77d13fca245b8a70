package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyAttempted is returned when a (user, exam) pair already has a
// Result. A graded attempt can never be reopened, so the loader refuses
// before touching the store.
var ErrAlreadyAttempted = errors.New("exam already attempted")

// Load returns the live attempt for (exam, user), resuming persisted state
// or initializing a fresh attempt as needed. Concurrent loads for the same
// pair converge on a single Attempt.
func (e *Engine) Load(ctx context.Context, examID uuid.UUID, userID int, userAgent string) (*Attempt, error) {
	key := attemptKey{examID, userID}

	if a, ok := e.Get(examID, userID); ok {
		return a, nil
	}

	// Lockout check first: once graded, nothing is written anywhere.
	done, err := e.results.HasResult(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing result: %w", err)
	}
	if done {
		return nil, ErrAlreadyAttempted
	}

	snap, err := e.store.Load(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt state: %w", err)
	}

	mobile := IsMobileUserAgent(userAgent)
	var state *State
	monitor := NewMonitor(mobile)

	if snap != nil {
		state = newState(examID, userID, snap.DeadlineMS)
		state.Answers = snap.Answers
		state.MarkedForReview = snap.Review
		state.Visited = snap.Visited
		monitor.Restore(snap.Strikes)
	} else {
		exam, err := e.exams.GetExam(ctx, examID)
		if err != nil {
			return nil, fmt.Errorf("failed to load exam: %w", err)
		}

		deadline := e.clock.Now().Add(time.Duration(exam.DurationMinutes) * time.Minute).UnixMilli()
		state = newState(examID, userID, deadline)
		state.Visited[0] = true
	}

	a := &Attempt{
		state:   state,
		store:   e.store,
		timer:   NewTimer(state.DeadlineMS, e.clock),
		monitor: monitor,
		coord:   NewCoordinator(state, e.store, e.submitter, e.log),
	}
	a.coord.onTerminal = func() { e.evict(key) }

	// Reserve the registry slot before any store write. Racing loads must
	// not each persist a deadline: the loser's later one would overwrite
	// the live attempt's.
	e.mu.Lock()
	if existing, ok := e.attempts[key]; ok {
		e.mu.Unlock()
		a.timer.Stop()
		return existing, nil
	}
	e.attempts[key] = a
	e.mu.Unlock()

	if snap == nil {
		if err := e.store.SaveDeadline(ctx, examID, userID, state.DeadlineMS); err != nil {
			e.evict(key)
			a.timer.Stop()
			return nil, fmt.Errorf("failed to persist attempt deadline: %w", err)
		}
		if err := e.store.SaveVisited(ctx, examID, userID, 0); err != nil {
			e.evict(key)
			a.timer.Stop()
			return nil, fmt.Errorf("failed to persist visited state: %w", err)
		}
	}

	a.timer.Watch(func() {
		out := a.Submit(context.Background(), ReasonTimeout)
		if out.Err != nil {
			e.log.Error().Err(out.Err).
				Str("exam_id", examID.String()).
				Int("user_id", userID).
				Msg("timeout submission failed")
		}
	})

	e.log.Info().
		Str("exam_id", examID.String()).
		Int("user_id", userID).
		Bool("resumed", snap != nil).
		Int64("deadline_ms", state.DeadlineMS).
		Msg("attempt loaded")

	return a, nil
}

// ForceExpire finishes an attempt whose deadline passed while no process
// held it in memory. Called by the deadline sweeper.
func (e *Engine) ForceExpire(ctx context.Context, examID uuid.UUID, userID int) error {
	if a, ok := e.Get(examID, userID); ok {
		out := a.Submit(ctx, ReasonTimeout)
		return out.Err
	}

	// A stale index entry with no persisted state must not spawn a fresh
	// attempt; just drop the leftover keys.
	snap, err := e.store.Load(ctx, examID, userID)
	if err != nil {
		return fmt.Errorf("failed to load attempt state: %w", err)
	}
	if snap == nil {
		return e.store.Clear(ctx, examID, userID)
	}

	a, err := e.Load(ctx, examID, userID, "")
	if err != nil {
		if errors.Is(err, ErrAlreadyAttempted) {
			// Already graded; drop the leftover attempt keys.
			return e.store.Clear(ctx, examID, userID)
		}
		return err
	}

	out := a.Submit(ctx, ReasonTimeout)
	return out.Err
}
