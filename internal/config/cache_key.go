package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding a user's active session JTI.
func (r *CacheKeyStruct) UserSessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

// StatsSummaryKey returns the cache key for the public stats summary.
func (r *CacheKeyStruct) StatsSummaryKey() string {
	return "stats:summary"
}

var CacheKey = NewCacheKeyStruct()
