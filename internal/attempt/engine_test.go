package attempt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

type fakeResults struct {
	has map[string]bool
}

func (f *fakeResults) HasResult(_ context.Context, examID uuid.UUID, userID int) (bool, error) {
	return f.has[memKey(examID, userID)], nil
}

type fakeExams struct {
	exam *model.Exam
}

func (f *fakeExams) GetExam(_ context.Context, _ uuid.UUID) (*model.Exam, error) {
	return f.exam, nil
}

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"

func newTestEngine(t *testing.T) (*Engine, *MemoryStore, *fakeSubmitter, *fakeResults, *fakeClock, uuid.UUID) {
	t.Helper()
	store := NewMemoryStore()
	sub := &fakeSubmitter{}
	results := &fakeResults{has: make(map[string]bool)}
	examID := uuid.New()
	exams := &fakeExams{exam: &model.Exam{ID: examID, DurationMinutes: 30}}
	clock := &fakeClock{now: time.UnixMilli(1_000_000_000)}
	e := NewEngine(store, sub, results, exams, clock, zerolog.Nop())
	return e, store, sub, results, clock, examID
}

func TestLoadFreshAttempt(t *testing.T) {
	e, store, _, _, clock, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}

	wantDeadline := clock.now.Add(30 * time.Minute).UnixMilli()
	ov := a.Overview()
	if ov.DeadlineMS != wantDeadline {
		t.Errorf("deadline = %d, want %d", ov.DeadlineMS, wantDeadline)
	}
	if len(ov.Visited) != 1 || ov.Visited[0] != 0 {
		t.Errorf("fresh attempt should mark question 0 visited, got %v", ov.Visited)
	}
	if !ov.FullscreenRequired {
		t.Error("desktop attempt should require fullscreen")
	}
	if ov.Phase != "active" {
		t.Errorf("phase = %q, want active", ov.Phase)
	}

	snap, err := store.Load(ctx, examID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil || snap.DeadlineMS != wantDeadline {
		t.Fatal("deadline must be persisted at attempt start")
	}
}

// gatedResults blocks HasResult until the expected number of loaders has
// arrived, forcing them past the registry fast path together.
type gatedResults struct {
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedResults) HasResult(_ context.Context, _ uuid.UUID, _ int) (bool, error) {
	g.arrived <- struct{}{}
	<-g.release
	return false, nil
}

// steppedClock hands out a later time on every Now call, so racing loaders
// compute distinct deadlines.
type steppedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestConcurrentFirstLoadsShareOneDeadline(t *testing.T) {
	store := NewMemoryStore()
	sub := &fakeSubmitter{}
	results := &gatedResults{arrived: make(chan struct{}, 2), release: make(chan struct{})}
	examID := uuid.New()
	exams := &fakeExams{exam: &model.Exam{ID: examID, DurationMinutes: 30}}
	clock := &steppedClock{now: time.UnixMilli(1_000_000_000), step: time.Second}
	e := NewEngine(store, sub, results, exams, clock, zerolog.Nop())

	ctx := context.Background()
	attempts := make([]*Attempt, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempts[i], errs[i] = e.Load(ctx, examID, 7, desktopUA)
		}(i)
	}
	<-results.arrived
	<-results.arrived
	close(results.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if attempts[0] != attempts[1] {
		t.Fatal("concurrent loads must converge on one attempt")
	}

	snap, err := store.Load(ctx, examID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("deadline must be persisted")
	}
	if got := attempts[0].Overview().DeadlineMS; snap.DeadlineMS != got {
		t.Errorf("persisted deadline %d diverges from live attempt's %d", snap.DeadlineMS, got)
	}
}

func TestLoadReturnsSameAttempt(t *testing.T) {
	e, _, _, _, _, examID := newTestEngine(t)
	ctx := context.Background()

	a1, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Error("concurrent connections must share one attempt")
	}
}

func TestResumeRestoresStateAndKeepsDeadline(t *testing.T) {
	e, store, _, _, clock, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	deadline := a.Overview().DeadlineMS

	if err := a.SaveAnswer(ctx, 2, model.MCQAnswer(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ToggleReview(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := a.Visit(ctx, 2); err != nil {
		t.Fatal(err)
	}
	a.monitor.Record(ViolationVisibility)
	if err := store.SaveStrikes(ctx, examID, 7, a.monitor.Snapshot()); err != nil {
		t.Fatal(err)
	}

	// Simulate a process restart: drop the live attempt, advance the clock.
	a.timer.Stop()
	e.evict(attemptKey{examID, 7})
	clock.Advance(10 * time.Minute)

	resumed, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	ov := resumed.Overview()

	if ov.DeadlineMS != deadline {
		t.Errorf("resume recomputed the deadline: %d, want %d", ov.DeadlineMS, deadline)
	}
	if opt, _ := ov.Answers[2].OptionIndex(); opt != 1 {
		t.Errorf("answer not restored: %+v", ov.Answers)
	}
	if len(ov.MarkedForReview) != 1 || ov.MarkedForReview[0] != 2 {
		t.Errorf("review marks not restored: %v", ov.MarkedForReview)
	}
	if ov.Strikes.Visibility != 1 {
		t.Errorf("strikes not restored: %+v", ov.Strikes)
	}
	if want := 20 * 60; ov.RemainingSeconds != want {
		t.Errorf("remaining = %d, want %d", ov.RemainingSeconds, want)
	}
	resumed.timer.Stop()
}

func TestLoadLockedOutAfterResult(t *testing.T) {
	e, store, _, results, _, examID := newTestEngine(t)
	results.has[memKey(examID, 7)] = true

	if _, err := e.Load(context.Background(), examID, 7, desktopUA); err != ErrAlreadyAttempted {
		t.Fatalf("expected ErrAlreadyAttempted, got %v", err)
	}
	if store.Writes() != 0 {
		t.Errorf("lockout must not write attempt state, got %d writes", store.Writes())
	}
}

func TestSaveAnswerRejectedAfterTerminal(t *testing.T) {
	e, _, _, _, _, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	if out := a.Submit(ctx, ReasonManual); !out.Terminal {
		t.Fatalf("submit failed: %+v", out)
	}

	if err := a.SaveAnswer(ctx, 0, model.MCQAnswer(1)); err != ErrNotActive {
		t.Errorf("SaveAnswer after terminal = %v, want ErrNotActive", err)
	}
	if err := a.Visit(ctx, 1); err != ErrNotActive {
		t.Errorf("Visit after terminal = %v, want ErrNotActive", err)
	}
	if _, _, err := a.RecordViolation(ctx, ViolationVisibility); err != ErrNotActive {
		t.Errorf("RecordViolation after terminal = %v, want ErrNotActive", err)
	}
}

func TestTerminalEvictsFromRegistry(t *testing.T) {
	e, _, _, _, _, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	a.Submit(ctx, ReasonManual)

	if _, ok := e.Get(examID, 7); ok {
		t.Error("terminal attempt should be evicted from the registry")
	}
}

func TestViolationThresholdSubmitsAsCheat(t *testing.T) {
	e, _, sub, _, _, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}

	if _, out, err := a.RecordViolation(ctx, ViolationFullscreen); err != nil || out != nil {
		t.Fatalf("first fullscreen exit should only warn: out=%+v err=%v", out, err)
	}

	verdict, out, err := a.RecordViolation(ctx, ViolationFullscreen)
	if err != nil {
		t.Fatal(err)
	}
	if !verdict.Terminate {
		t.Fatal("second fullscreen exit should carry a terminate verdict")
	}
	if out == nil || !out.Terminal || out.Reason != ReasonCheat {
		t.Fatalf("expected terminal cheat outcome, got %+v", out)
	}
	if sub.count() != 1 {
		t.Errorf("expected 1 submission, got %d", sub.count())
	}
}

func TestMergeAnswersIgnoredAfterTerminal(t *testing.T) {
	e, _, _, _, _, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	a.MergeAnswers(map[int]model.Answer{0: model.MCQAnswer(3)})
	if opt, _ := a.Overview().Answers[0].OptionIndex(); opt != 3 {
		t.Fatal("merge before terminal should apply")
	}

	a.Submit(ctx, ReasonManual)
	a.MergeAnswers(map[int]model.Answer{1: model.MCQAnswer(0)})
	if _, ok := a.Overview().Answers[1]; ok {
		t.Error("merge after terminal must be ignored")
	}
}

func TestForceExpireSubmitsWithTimeout(t *testing.T) {
	e, store, sub, _, clock, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	a.timer.Stop()
	e.evict(attemptKey{examID, 7})

	clock.Advance(2 * time.Hour)
	if err := e.ForceExpire(ctx, examID, 7); err != nil {
		t.Fatal(err)
	}
	if sub.count() != 1 {
		t.Errorf("expected 1 submission, got %d", sub.count())
	}
	snap, err := store.Load(ctx, examID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Error("expired attempt state should be cleared")
	}
}

func TestForceExpireAfterResultClearsState(t *testing.T) {
	e, store, sub, results, _, examID := newTestEngine(t)
	ctx := context.Background()

	if err := store.SaveDeadline(ctx, examID, 7, 123); err != nil {
		t.Fatal(err)
	}
	results.has[memKey(examID, 7)] = true

	if err := e.ForceExpire(ctx, examID, 7); err != nil {
		t.Fatal(err)
	}
	if sub.count() != 0 {
		t.Errorf("graded attempt must not be resubmitted, got %d calls", sub.count())
	}
	snap, err := store.Load(ctx, examID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Error("leftover state should be cleared")
	}
}

func TestToggleReviewFlips(t *testing.T) {
	e, _, _, _, _, examID := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Load(ctx, examID, 7, desktopUA)
	if err != nil {
		t.Fatal(err)
	}
	defer a.timer.Stop()

	marked, err := a.ToggleReview(ctx, 4)
	if err != nil || !marked {
		t.Fatalf("first toggle = (%v, %v), want (true, nil)", marked, err)
	}
	marked, err = a.ToggleReview(ctx, 4)
	if err != nil || marked {
		t.Fatalf("second toggle = (%v, %v), want (false, nil)", marked, err)
	}
	if got := a.Overview().MarkedForReview; len(got) != 0 {
		t.Errorf("review set should be empty, got %v", got)
	}
}
