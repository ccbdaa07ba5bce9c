package common

import (
	"github.com/google/uuid"
)

// NewSourceID generates a unique source ID with the "src_" prefix
func NewSourceID() string {
	return "src_" + uuid.New().String()
}

// NewJobID generates a unique sync job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewHistoryID generates a unique sync history entry ID with the "hist_" prefix
func NewHistoryID() string {
	return "hist_" + uuid.New().String()
}
