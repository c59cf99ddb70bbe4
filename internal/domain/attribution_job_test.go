package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttributionJob(t *testing.T) {
	now := time.Now()
	job := NewAttributionJob("job1", "gen1", []string{"a", "b"}, StrategySimilarity, 0.75, now)

	assert.Equal(t, "job1", job.ID)
	assert.Equal(t, "gen1", job.DocumentID)
	assert.Equal(t, []string{"a", "b"}, job.SourceDocumentIDs)
	assert.Equal(t, AttributionJobStatusPending, job.Status)
	assert.Equal(t, int32(0), job.Retries)
	assert.Equal(t, "", job.Error)
	assert.Equal(t, now, job.CreatedAt)
	assert.Nil(t, job.ProcessedAt)
}

func TestAttributionJobStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		status   AttributionJobStatus
		expected string
	}{
		{"Pending", AttributionJobStatusPending, "pending"},
		{"Processing", AttributionJobStatusProcessing, "processing"},
		{"Completed", AttributionJobStatusCompleted, "completed"},
		{"Failed", AttributionJobStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func TestValidateAttributionJob(t *testing.T) {
	now := time.Now()
	valid := func() *AttributionJob {
		return NewAttributionJob("job1", "gen1", []string{"src1"}, StrategySimilarity, 0.75, now)
	}

	tests := []struct {
		name    string
		mutate  func(j *AttributionJob)
		wantErr bool
		errMsg  string
	}{
		{name: "valid job", mutate: func(j *AttributionJob) {}},
		{name: "missing ID", mutate: func(j *AttributionJob) { j.ID = "" }, wantErr: true, errMsg: "ID"},
		{name: "missing DocumentID", mutate: func(j *AttributionJob) { j.DocumentID = "" }, wantErr: true, errMsg: "DocumentID"},
		{name: "no sources", mutate: func(j *AttributionJob) { j.SourceDocumentIDs = nil }, wantErr: true, errMsg: "SourceDocumentIDs"},
		{name: "self citation", mutate: func(j *AttributionJob) { j.SourceDocumentIDs = []string{"gen1"} }, wantErr: true, errMsg: "generated document"},
		{name: "invalid Strategy", mutate: func(j *AttributionJob) { j.Strategy = "vibes" }, wantErr: true, errMsg: "Strategy"},
		{name: "threshold above one", mutate: func(j *AttributionJob) { j.Threshold = 1.5 }, wantErr: true, errMsg: "Threshold"},
		{name: "invalid Status", mutate: func(j *AttributionJob) { j.Status = "invalid" }, wantErr: true, errMsg: "Status"},
		{name: "negative Retries", mutate: func(j *AttributionJob) { j.Retries = -1 }, wantErr: true, errMsg: "Retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid()
			tt.mutate(job)
			err := ValidateAttributionJob(job)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateAttributionJob_Nil(t *testing.T) {
	assert.Error(t, ValidateAttributionJob(nil))
}
