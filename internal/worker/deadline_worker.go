package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/attempt"
)

// DeadlineWorker sweeps the active-attempt index for deadlines that passed
// without a live timer firing — the process restarted, or the student's
// device died and never came back. Whatever answers were persisted get
// graded as a timeout submission.
type DeadlineWorker struct {
	store    *attempt.RedisStore
	engine   *attempt.Engine
	clock    attempt.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(store *attempt.RedisStore, engine *attempt.Engine, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		store:    store,
		engine:   engine,
		clock:    attempt.SystemClock{},
		interval: interval,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	refs, err := w.store.ExpiredAttempts(ctx, w.clock.Now().UnixMilli())
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to scan expired attempts")
		return
	}

	for _, ref := range refs {
		if err := w.engine.ForceExpire(ctx, ref.ExamID, ref.UserID); err != nil {
			w.log.Error().Err(err).
				Str("exam_id", ref.ExamID.String()).
				Int("user_id", ref.UserID).
				Msg("Failed to expire attempt")
			continue
		}
		w.log.Info().
			Str("exam_id", ref.ExamID.String()).
			Int("user_id", ref.UserID).
			Msg("Expired attempt submitted")
	}
}
