package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateLoginKey returns the cache key for a candidate's login session.
func (r *CacheKeyStruct) CandidateLoginKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// AttemptStartKey returns the cache key mirroring an attempt's start timestamp.
func (r *CacheKeyStruct) AttemptStartKey(paperCode string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:paper:%s:attempt_start", candidateID, paperCode)
}

// AttemptAnswersKey returns the cache key for an attempt's in-flight answers.
func (r *CacheKeyStruct) AttemptAnswersKey(paperCode string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:paper:%s:answers", candidateID, paperCode)
}

// AttemptPositionKey returns the cache key for the current question ordinal.
func (r *CacheKeyStruct) AttemptPositionKey(paperCode string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:paper:%s:position", candidateID, paperCode)
}

// PaperPayloadKey returns the cache key for a paper's candidate payload.
func (r *CacheKeyStruct) PaperPayloadKey(paperCode string) string {
	return fmt.Sprintf("paper:%s:payload", paperCode)
}

// VerdictsKey returns the cache key for staged manual verdicts during review.
func (r *CacheKeyStruct) VerdictsKey(paperCode string, candidateID int) string {
	return fmt.Sprintf("review:paper:%s:candidate:%d:verdicts", paperCode, candidateID)
}

var CacheKey = NewCacheKeyStruct()
