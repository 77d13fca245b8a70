package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// AttemptAnswersKey returns the cache key for an attempt's answer hash.
func (r *CacheKeyStruct) AttemptAnswersKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:answers", userID, examID)
}

// AttemptReviewKey returns the cache key for an attempt's review-mark set.
func (r *CacheKeyStruct) AttemptReviewKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:review", userID, examID)
}

// AttemptVisitedKey returns the cache key for an attempt's visited set.
func (r *CacheKeyStruct) AttemptVisitedKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:visited", userID, examID)
}

// AttemptDeadlineKey returns the cache key for an attempt's absolute deadline.
// Presence of this key is what distinguishes a resumable attempt from a
// fresh one.
func (r *CacheKeyStruct) AttemptDeadlineKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:deadline", userID, examID)
}

// AttemptViolationsKey returns the cache key for an attempt's strike counters.
func (r *CacheKeyStruct) AttemptViolationsKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:violations", userID, examID)
}

// ActiveAttemptsKey returns the sorted-set key indexing in-flight attempts
// by deadline (unix ms). The deadline worker sweeps this set.
func (r *CacheKeyStruct) ActiveAttemptsKey() string {
	return "attempts:active"
}

var CacheKey = NewCacheKeyStruct()
