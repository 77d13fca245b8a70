package attempt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int32
	failFor int32 // fail the first N calls
	result  *model.Result
}

func (f *fakeSubmitter) Submit(_ context.Context, examID uuid.UUID, userID int, _ map[int]model.Answer) (*model.Result, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.failFor) {
		return nil, errors.New("backend unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result != nil {
		return f.result, nil
	}
	return &model.Result{ExamID: examID, UserID: userID, Score: 10, Status: model.ResultStatusPublished}, nil
}

func (f *fakeSubmitter) count() int {
	return int(atomic.LoadInt32(&f.calls))
}

func newTestCoordinator(sub Submitter, store Store) *Coordinator {
	state := newState(uuid.New(), 7, 0)
	return NewCoordinator(state, store, sub, zerolog.Nop())
}

func TestTriggerExactlyOnce(t *testing.T) {
	sub := &fakeSubmitter{}
	c := newTestCoordinator(sub, NewMemoryStore())

	reasons := []Reason{ReasonManual, ReasonTimeout, ReasonCheat, ReasonUnload}
	outcomes := make([]Outcome, len(reasons))

	var wg sync.WaitGroup
	for i, r := range reasons {
		wg.Add(1)
		go func(i int, r Reason) {
			defer wg.Done()
			outcomes[i] = c.Trigger(context.Background(), r)
		}(i, r)
	}
	wg.Wait()

	if got := sub.count(); got != 1 {
		t.Fatalf("expected exactly one submission, got %d", got)
	}

	terminal, dropped := 0, 0
	for _, out := range outcomes {
		if out.Terminal {
			terminal++
		}
		if out.Dropped {
			dropped++
		}
	}
	if terminal != 1 {
		t.Errorf("expected 1 terminal outcome, got %d", terminal)
	}
	if dropped != len(reasons)-1 {
		t.Errorf("expected %d dropped outcomes, got %d", len(reasons)-1, dropped)
	}
	if c.Phase() != PhaseTerminal {
		t.Errorf("expected terminal phase, got %s", c.Phase())
	}
}

func TestTriggerAfterTerminalIsDropped(t *testing.T) {
	sub := &fakeSubmitter{}
	c := newTestCoordinator(sub, NewMemoryStore())

	if out := c.Trigger(context.Background(), ReasonManual); !out.Terminal {
		t.Fatalf("first trigger should be terminal, got %+v", out)
	}
	out := c.Trigger(context.Background(), ReasonTimeout)
	if !out.Dropped {
		t.Errorf("second trigger should be dropped, got %+v", out)
	}
	if sub.count() != 1 {
		t.Errorf("expected 1 submission, got %d", sub.count())
	}
}

func TestManualFailureReleasesLock(t *testing.T) {
	sub := &fakeSubmitter{failFor: 1}
	c := newTestCoordinator(sub, NewMemoryStore())

	out := c.Trigger(context.Background(), ReasonManual)
	if out.Err == nil || out.Terminal || out.Dropped {
		t.Fatalf("expected recoverable failure, got %+v", out)
	}
	if c.Phase() != PhaseActive {
		t.Fatalf("expected lock released back to active, got %s", c.Phase())
	}

	// Retry succeeds.
	out = c.Trigger(context.Background(), ReasonManual)
	if !out.Terminal || out.Err != nil {
		t.Fatalf("retry should succeed, got %+v", out)
	}
	if sub.count() != 2 {
		t.Errorf("expected 2 submission calls, got %d", sub.count())
	}
}

func TestForcedFailureStillTerminal(t *testing.T) {
	for _, reason := range []Reason{ReasonTimeout, ReasonCheat} {
		t.Run(string(reason), func(t *testing.T) {
			sub := &fakeSubmitter{failFor: 100}
			store := NewMemoryStore()
			state := newState(uuid.New(), 7, 0)
			c := NewCoordinator(state, store, sub, zerolog.Nop())

			if err := store.SaveDeadline(context.Background(), state.ExamID, state.UserID, 123); err != nil {
				t.Fatal(err)
			}

			out := c.Trigger(context.Background(), reason)
			if !out.Terminal {
				t.Fatalf("forced trigger must be terminal even on failure, got %+v", out)
			}
			if out.Err == nil {
				t.Errorf("expected submission error to surface")
			}
			if c.Phase() != PhaseTerminal {
				t.Errorf("expected terminal phase, got %s", c.Phase())
			}

			snap, err := store.Load(context.Background(), state.ExamID, state.UserID)
			if err != nil {
				t.Fatal(err)
			}
			if snap != nil {
				t.Errorf("expected attempt state cleared after terminal outcome")
			}
		})
	}
}

func TestUnloadFailureKeepsAttemptResumable(t *testing.T) {
	sub := &fakeSubmitter{failFor: 1}
	store := NewMemoryStore()
	state := newState(uuid.New(), 7, 0)
	state.Answers[0] = model.MCQAnswer(1)
	c := NewCoordinator(state, store, sub, zerolog.Nop())

	if err := store.SaveDeadline(context.Background(), state.ExamID, state.UserID, 123); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAnswer(context.Background(), state.ExamID, state.UserID, 0, model.MCQAnswer(1)); err != nil {
		t.Fatal(err)
	}

	out := c.Trigger(context.Background(), ReasonUnload)
	if out.Err == nil || out.Terminal || out.Dropped {
		t.Fatalf("expected recoverable failure, got %+v", out)
	}
	if c.Phase() != PhaseActive {
		t.Fatalf("expected lock released back to active, got %s", c.Phase())
	}

	// No Result exists, so the persisted state must survive for resume
	// and for the deadline sweeper.
	snap, err := store.Load(context.Background(), state.ExamID, state.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("attempt state was cleared without a stored result")
	}
	if snap.DeadlineMS != 123 {
		t.Errorf("deadline = %d, want 123", snap.DeadlineMS)
	}
	if _, ok := snap.Answers[0]; !ok {
		t.Error("saved answer dropped by failed unload flush")
	}

	// The sweeper's later timeout trigger still goes through.
	out = c.Trigger(context.Background(), ReasonTimeout)
	if !out.Terminal || out.Err != nil {
		t.Fatalf("timeout after failed unload should submit, got %+v", out)
	}
	if sub.count() != 2 {
		t.Errorf("expected 2 submission calls, got %d", sub.count())
	}
}

func TestTriggerSnapshotsAnswers(t *testing.T) {
	state := newState(uuid.New(), 7, 0)
	state.Answers[0] = model.MCQAnswer(2)

	var seen map[int]model.Answer
	sub := submitterFunc(func(_ context.Context, _ uuid.UUID, _ int, answers map[int]model.Answer) (*model.Result, error) {
		// The snapshot was taken before Submit ran; edits from here on
		// must not bleed into the payload.
		state.Answers[0] = model.MCQAnswer(3)
		state.Answers[1] = model.TheoryAnswer("late edit")
		seen = answers
		return &model.Result{Score: 0}, nil
	})

	c := NewCoordinator(state, NewMemoryStore(), sub, zerolog.Nop())
	c.Trigger(context.Background(), ReasonManual)

	if opt, _ := seen[0].OptionIndex(); opt != 2 {
		t.Errorf("submission saw a late edit: answer 0 option = %d, want 2", opt)
	}
	if _, ok := seen[1]; ok {
		t.Errorf("submission saw an answer added after the trigger")
	}
}

type submitterFunc func(ctx context.Context, examID uuid.UUID, userID int, answers map[int]model.Answer) (*model.Result, error)

func (f submitterFunc) Submit(ctx context.Context, examID uuid.UUID, userID int, answers map[int]model.Answer) (*model.Result, error) {
	return f(ctx, examID, userID, answers)
}
