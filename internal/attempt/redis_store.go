package attempt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/scoreveda/scoreveda-backend/internal/config"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// RedisStore is the production Store: attempt scratch state lives in Redis
// so it survives client reloads and server restarts. It also maintains the
// active-attempt index (a sorted set scored by deadline) that the deadline
// worker sweeps.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore on top of an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// AttemptRef identifies one attempt in the active index.
type AttemptRef struct {
	ExamID uuid.UUID
	UserID int
}

func attemptMember(examID uuid.UUID, userID int) string {
	return fmt.Sprintf("%s|%d", examID, userID)
}

func parseAttemptMember(member string) (AttemptRef, error) {
	parts := strings.SplitN(member, "|", 2)
	if len(parts) != 2 {
		return AttemptRef{}, fmt.Errorf("malformed attempt member %q", member)
	}
	examID, err := uuid.Parse(parts[0])
	if err != nil {
		return AttemptRef{}, fmt.Errorf("parse exam id: %w", err)
	}
	userID, err := strconv.Atoi(parts[1])
	if err != nil {
		return AttemptRef{}, fmt.Errorf("parse user id: %w", err)
	}
	return AttemptRef{ExamID: examID, UserID: userID}, nil
}

func (s *RedisStore) SaveAnswer(ctx context.Context, examID uuid.UUID, userID int, index int, ans model.Answer) error {
	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	key := config.CacheKey.AttemptAnswersKey(examID.String(), userID)
	if err := s.rdb.HSet(ctx, key, strconv.Itoa(index), raw).Err(); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveReview(ctx context.Context, examID uuid.UUID, userID int, review map[int]bool) error {
	key := config.CacheKey.AttemptReviewKey(examID.String(), userID)

	// Replace the whole set: review marks toggle off as well as on.
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	members := make([]interface{}, 0, len(review))
	for idx, marked := range review {
		if marked {
			members = append(members, strconv.Itoa(idx))
		}
	}
	if len(members) > 0 {
		pipe.SAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save review marks: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveVisited(ctx context.Context, examID uuid.UUID, userID int, index int) error {
	key := config.CacheKey.AttemptVisitedKey(examID.String(), userID)
	if err := s.rdb.SAdd(ctx, key, strconv.Itoa(index)).Err(); err != nil {
		return fmt.Errorf("save visited: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveDeadline(ctx context.Context, examID uuid.UUID, userID int, deadlineMS int64) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.AttemptDeadlineKey(examID.String(), userID), deadlineMS, 0)
	pipe.ZAdd(ctx, config.CacheKey.ActiveAttemptsKey(), redis.Z{
		Score:  float64(deadlineMS),
		Member: attemptMember(examID, userID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save deadline: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveStrikes(ctx context.Context, examID uuid.UUID, userID int, strikes Strikes) error {
	key := config.CacheKey.AttemptViolationsKey(examID.String(), userID)
	err := s.rdb.HSet(ctx, key,
		"visibility", strikes.Visibility,
		"fullscreen", strikes.Fullscreen,
		"back_nav", strikes.BackNav,
	).Err()
	if err != nil {
		return fmt.Errorf("save strikes: %w", err)
	}
	return nil
}

// Load rebuilds a Snapshot from Redis. A missing deadline record means no
// in-flight attempt: (nil, nil).
func (s *RedisStore) Load(ctx context.Context, examID uuid.UUID, userID int) (*Snapshot, error) {
	eid := examID.String()

	deadlineStr, err := s.rdb.Get(ctx, config.CacheKey.AttemptDeadlineKey(eid, userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load deadline: %w", err)
	}
	deadlineMS, err := strconv.ParseInt(deadlineStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline format in store: %w", err)
	}

	snap := &Snapshot{
		Answers:    make(map[int]model.Answer),
		Review:     make(map[int]bool),
		Visited:    make(map[int]bool),
		DeadlineMS: deadlineMS,
	}

	rawAnswers, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(eid, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	for field, raw := range rawAnswers {
		idx, err := strconv.Atoi(field)
		if err != nil {
			continue // skip corrupted field rather than failing the resume
		}
		var ans model.Answer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			continue
		}
		snap.Answers[idx] = ans
	}

	review, err := s.rdb.SMembers(ctx, config.CacheKey.AttemptReviewKey(eid, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load review marks: %w", err)
	}
	for _, member := range review {
		if idx, err := strconv.Atoi(member); err == nil {
			snap.Review[idx] = true
		}
	}

	visited, err := s.rdb.SMembers(ctx, config.CacheKey.AttemptVisitedKey(eid, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load visited: %w", err)
	}
	for _, member := range visited {
		if idx, err := strconv.Atoi(member); err == nil {
			snap.Visited[idx] = true
		}
	}

	strikes, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptViolationsKey(eid, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load strikes: %w", err)
	}
	snap.Strikes.Visibility, _ = strconv.Atoi(strikes["visibility"])
	snap.Strikes.Fullscreen, _ = strconv.Atoi(strikes["fullscreen"])
	snap.Strikes.BackNav, _ = strconv.Atoi(strikes["back_nav"])

	return snap, nil
}

func (s *RedisStore) Clear(ctx context.Context, examID uuid.UUID, userID int) error {
	eid := examID.String()

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx,
		config.CacheKey.AttemptAnswersKey(eid, userID),
		config.CacheKey.AttemptReviewKey(eid, userID),
		config.CacheKey.AttemptVisitedKey(eid, userID),
		config.CacheKey.AttemptDeadlineKey(eid, userID),
		config.CacheKey.AttemptViolationsKey(eid, userID),
	)
	pipe.ZRem(ctx, config.CacheKey.ActiveAttemptsKey(), attemptMember(examID, userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear attempt: %w", err)
	}
	return nil
}

// ExpiredAttempts returns references for attempts whose deadline is at or
// before nowMS. Malformed index members are dropped from the set.
func (s *RedisStore) ExpiredAttempts(ctx context.Context, nowMS int64) ([]AttemptRef, error) {
	members, err := s.rdb.ZRangeByScore(ctx, config.CacheKey.ActiveAttemptsKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(nowMS, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan active attempts: %w", err)
	}

	refs := make([]AttemptRef, 0, len(members))
	for _, member := range members {
		ref, err := parseAttemptMember(member)
		if err != nil {
			_ = s.rdb.ZRem(ctx, config.CacheKey.ActiveAttemptsKey(), member)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
