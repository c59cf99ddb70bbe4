package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentRecord(t *testing.T) {
	doc, err := ParseDocumentRecord(DocumentRecord{
		ID:          " a1 ",
		Text:        "Inflation rose 3%.",
		Timestamp:   "2024-03-01T10:15:00+02:00",
		SourceLabel: "wire",
	})
	require.NoError(t, err)

	assert.Equal(t, "a1", doc.ID)
	assert.Equal(t, "Inflation rose 3%.", doc.Text)
	assert.Equal(t, "wire", doc.SourceLabel)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC), doc.Timestamp)
}

func TestParseDocumentRecord_Timestamps(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"RFC3339", "2024-03-01T10:15:00Z", false},
		{"fractional", "2024-03-01T10:15:00.123456Z", false},
		{"no zone", "2024-03-01T10:15:00", false},
		{"space separated", "2024-03-01 10:15:00", false},
		{"date only", "2024-03-01", false},
		{"empty", "", true},
		{"garbage", "yesterday", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocumentRecord(DocumentRecord{ID: "d", Text: "x", Timestamp: tt.value})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, HasCode(err, ErrCodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDecodeDocumentRecord(t *testing.T) {
	doc, err := DecodeDocumentRecord([]byte(`{"id":"b","text":"hello","timestamp":"2024-01-02","source_label":"blog"}`))
	require.NoError(t, err)
	assert.Equal(t, "b", doc.ID)
	assert.Equal(t, "blog", doc.SourceLabel)

	_, err = DecodeDocumentRecord([]byte(`{"id":`))
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeValidation))
}

func TestDocument_ToRecord(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	doc := NewDocument("x", "body", ts, "src")

	rec := doc.ToRecord()
	assert.Equal(t, "2024-05-06T07:08:09Z", rec.Timestamp)

	back, err := ParseDocumentRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestValidateDocument(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		doc     *Document
		wantErr bool
		errMsg  string
	}{
		{"valid", NewDocument("a", "text", now, "s"), false, ""},
		{"nil", nil, true, "nil"},
		{"missing ID", NewDocument("", "text", now, "s"), true, "ID"},
		{"separator in ID", NewDocument("a#1", "text", now, "s"), true, "must not contain"},
		{"zero timestamp", NewDocument("a", "text", time.Time{}, "s"), true, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.True(t, errors.Is(err, ErrInvalidDocument))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
