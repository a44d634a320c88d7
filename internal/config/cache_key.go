package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizPayloadKey returns the cache key for the served quiz payload
func (r *CacheKeyStruct) QuizPayloadKey() string {
	return "quiz:payload"
}

// QuizAnswerKey returns the cache key for the quiz answer key
func (r *CacheKeyStruct) QuizAnswerKey() string {
	return "quiz:key"
}

// QuizDetailsKey returns the cache key for the quiz details
func (r *CacheKeyStruct) QuizDetailsKey() string {
	return "quiz:details"
}

// SessionHistoryKey returns the cache key for a session's feedback history
func (r *CacheKeyStruct) SessionHistoryKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

var CacheKey = NewCacheKeyStruct()
