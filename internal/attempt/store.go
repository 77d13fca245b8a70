package attempt

import (
	"context"

	"github.com/google/uuid"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// Snapshot is everything a Store holds for one attempt.
type Snapshot struct {
	Answers    map[int]model.Answer
	Review     map[int]bool
	Visited    map[int]bool
	DeadlineMS int64
	Strikes    Strikes
}

// Store is the persistence port for per-attempt scratch state, keyed by
// (exam, user). It must survive reloads but not a terminal outcome: Clear
// is called only once a submission is durably accepted (or terminally
// rejected), never on ordinary navigation.
//
// The deadline record doubles as the attempt marker: Load returns
// (nil, nil) when no deadline has been persisted, which the loader reads
// as "fresh attempt".
type Store interface {
	SaveAnswer(ctx context.Context, examID uuid.UUID, userID int, index int, ans model.Answer) error
	SaveReview(ctx context.Context, examID uuid.UUID, userID int, review map[int]bool) error
	SaveVisited(ctx context.Context, examID uuid.UUID, userID int, index int) error
	SaveDeadline(ctx context.Context, examID uuid.UUID, userID int, deadlineMS int64) error
	SaveStrikes(ctx context.Context, examID uuid.UUID, userID int, s Strikes) error
	Load(ctx context.Context, examID uuid.UUID, userID int) (*Snapshot, error)
	Clear(ctx context.Context, examID uuid.UUID, userID int) error
}
