package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ResumeKey returns the storage key of the resume record for an exam.
func (r *CacheKeyStruct) ResumeKey(examID string) string {
	return fmt.Sprintf("eng_run:%s", examID)
}

var CacheKey = NewCacheKeyStruct()
