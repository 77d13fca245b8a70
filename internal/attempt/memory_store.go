package attempt

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// MemoryStore is an in-process Store used by tests and single-node dev
// setups where Redis is unavailable.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]*Snapshot
	writes   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]*Snapshot)}
}

func memKey(examID uuid.UUID, userID int) string {
	return fmt.Sprintf("%s|%d", examID, userID)
}

// Writes reports how many mutations have been applied. Tests use it to
// assert that locked-out attempts never touch persistence.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryStore) get(examID uuid.UUID, userID int) *Snapshot {
	k := memKey(examID, userID)
	snap, ok := m.attempts[k]
	if !ok {
		snap = &Snapshot{
			Answers: make(map[int]model.Answer),
			Review:  make(map[int]bool),
			Visited: make(map[int]bool),
		}
		m.attempts[k] = snap
	}
	return snap
}

func (m *MemoryStore) SaveAnswer(_ context.Context, examID uuid.UUID, userID int, index int, ans model.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.get(examID, userID).Answers[index] = ans
	return nil
}

func (m *MemoryStore) SaveReview(_ context.Context, examID uuid.UUID, userID int, review map[int]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	snap := m.get(examID, userID)
	snap.Review = make(map[int]bool, len(review))
	for k, v := range review {
		if v {
			snap.Review[k] = true
		}
	}
	return nil
}

func (m *MemoryStore) SaveVisited(_ context.Context, examID uuid.UUID, userID int, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.get(examID, userID).Visited[index] = true
	return nil
}

func (m *MemoryStore) SaveDeadline(_ context.Context, examID uuid.UUID, userID int, deadlineMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.get(examID, userID).DeadlineMS = deadlineMS
	return nil
}

func (m *MemoryStore) SaveStrikes(_ context.Context, examID uuid.UUID, userID int, s Strikes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.get(examID, userID).Strikes = s
	return nil
}

func (m *MemoryStore) Load(_ context.Context, examID uuid.UUID, userID int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.attempts[memKey(examID, userID)]
	if !ok || snap.DeadlineMS == 0 {
		return nil, nil
	}
	out := &Snapshot{
		Answers:    make(map[int]model.Answer, len(snap.Answers)),
		Review:     make(map[int]bool, len(snap.Review)),
		Visited:    make(map[int]bool, len(snap.Visited)),
		DeadlineMS: snap.DeadlineMS,
		Strikes:    snap.Strikes,
	}
	for k, v := range snap.Answers {
		out.Answers[k] = v
	}
	for k, v := range snap.Review {
		out.Review[k] = v
	}
	for k, v := range snap.Visited {
		out.Visited[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context, examID uuid.UUID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, memKey(examID, userID))
	return nil
}
