package domain

import (
	"fmt"
	"time"
)

// AttributionJobStatus represents the status of an attribution job
type AttributionJobStatus string

const (
	AttributionJobStatusPending    AttributionJobStatus = "pending"
	AttributionJobStatusProcessing AttributionJobStatus = "processing"
	AttributionJobStatusCompleted  AttributionJobStatus = "completed"
	AttributionJobStatusFailed     AttributionJobStatus = "failed"
)

// AttributionJob represents an async attribution request for a generated
// document against its cited sources.
type AttributionJob struct {
	ID                string
	DocumentID        string
	SourceDocumentIDs []string
	Strategy          AttributionStrategy
	Threshold         float64
	Status            AttributionJobStatus
	Retries           int32
	Error             string
	RunID             string // Set once a run has completed
	CreatedAt         time.Time
	ProcessedAt       *time.Time
}

// NewAttributionJob creates a new AttributionJob instance
func NewAttributionJob(
	id, documentID string,
	sourceIDs []string,
	strategy AttributionStrategy,
	threshold float64,
	createdAt time.Time,
) *AttributionJob {
	return &AttributionJob{
		ID:                id,
		DocumentID:        documentID,
		SourceDocumentIDs: sourceIDs,
		Strategy:          strategy,
		Threshold:         threshold,
		Status:            AttributionJobStatusPending,
		CreatedAt:         createdAt,
	}
}

// ValidateAttributionJob validates an AttributionJob instance
func ValidateAttributionJob(j *AttributionJob) error {
	if j == nil {
		return fmt.Errorf("attribution job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("attribution job ID is required")
	}

	if j.DocumentID == "" {
		return fmt.Errorf("attribution job DocumentID is required")
	}

	if len(j.SourceDocumentIDs) == 0 {
		return fmt.Errorf("attribution job SourceDocumentIDs cannot be empty")
	}

	for _, id := range j.SourceDocumentIDs {
		if id == j.DocumentID {
			return fmt.Errorf("attribution job SourceDocumentIDs cannot include the generated document")
		}
	}

	if _, err := ParseAttributionStrategy(string(j.Strategy)); err != nil {
		return fmt.Errorf("attribution job Strategy is invalid: %s", j.Strategy)
	}

	if err := ValidateThreshold(j.Threshold); err != nil {
		return fmt.Errorf("attribution job Threshold is invalid: %w", err)
	}

	if !isValidAttributionJobStatus(j.Status) {
		return fmt.Errorf("attribution job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("attribution job Retries cannot be negative")
	}

	return nil
}

// isValidAttributionJobStatus checks if an AttributionJobStatus is valid
func isValidAttributionJobStatus(s AttributionJobStatus) bool {
	switch s {
	case AttributionJobStatusPending, AttributionJobStatusProcessing,
		AttributionJobStatusCompleted, AttributionJobStatusFailed:
		return true
	}
	return false
}
