package domain

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is one stored report result. Created on a cache miss, read on
// subsequent calls, and treated as absent once expired.
type CacheEntry struct {
	ReportID      uuid.UUID `json:"reportId"`
	Key           string    `json:"key"`
	ParameterHash string    `json:"parameterHash"`
	Payload       []byte    `json:"payload"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Hits          int64     `json:"hits"`
}

// Expired reports whether the entry must be treated as absent at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
