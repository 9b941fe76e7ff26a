package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(eptID string) string {
	return fmt.Sprintf("login:%s", eptID)
}

// TabStateKey returns the cache key of one persisted value of a student's tab.
// Tab ids are client supplied and only unique per student.
func (r *CacheKeyStruct) TabStateKey(eptID, tabID, key string) string {
	return fmt.Sprintf("exam:tab:%s:%s:%s", eptID, tabID, key)
}

// SectionResponsesKey is the tab-scoped key holding a section's answers
func (r *CacheKeyStruct) SectionResponsesKey(section string) string {
	return fmt.Sprintf("responses:%s", section)
}

// SectionTimeRemainingKey is the tab-scoped key holding a section's remaining milliseconds
func (r *CacheKeyStruct) SectionTimeRemainingKey(section string) string {
	return fmt.Sprintf("timeRemaining:%s", section)
}

// FullscreenResumeIntentKey marks that the next section should re-enter fullscreen
func (r *CacheKeyStruct) FullscreenResumeIntentKey() string {
	return "fullscreenResumeIntent"
}

// TestContentKey returns the request cache key for a delivered test form
func (r *CacheKeyStruct) TestContentKey(date, section string) string {
	return fmt.Sprintf("test:%s:%s", section, date)
}

var CacheKey = NewCacheKeyStruct()
