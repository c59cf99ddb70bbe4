package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document is a scraped article. It is immutable once ingested.
type Document struct {
	ID          string
	Text        string
	Timestamp   time.Time
	SourceLabel string
}

// DocumentRecord is the wire shape produced by the collection tooling.
type DocumentRecord struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	SourceLabel string `json:"source_label"`
}

// NewDocument creates a new Document instance
func NewDocument(id, text string, timestamp time.Time, sourceLabel string) *Document {
	return &Document{
		ID:          id,
		Text:        text,
		Timestamp:   timestamp,
		SourceLabel: sourceLabel,
	}
}

// ParseDocumentRecord converts an input record into a Document. The timestamp
// must be ISO-8601; both RFC 3339 and date-only forms are accepted.
func ParseDocumentRecord(rec DocumentRecord) (*Document, error) {
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeValidation, fmt.Sprintf("document %q has invalid timestamp", rec.ID), err)
	}
	doc := NewDocument(strings.TrimSpace(rec.ID), rec.Text, ts, rec.SourceLabel)
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeDocumentRecord parses a single JSON document record.
func DecodeDocumentRecord(data []byte) (*Document, error) {
	var rec DocumentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeValidation, "malformed document record", err)
	}
	return ParseDocumentRecord(rec)
}

// ToRecord converts a Document back into its wire shape.
func (d *Document) ToRecord() DocumentRecord {
	return DocumentRecord{
		ID:          d.ID,
		Text:        d.Text,
		Timestamp:   d.Timestamp.UTC().Format(time.RFC3339),
		SourceLabel: d.SourceLabel,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidDocument.Message, fmt.Errorf("document cannot be nil"))
	}
	if d.ID == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidDocument.Message, fmt.Errorf("document ID is required"))
	}
	if strings.Contains(d.ID, chunkKeySeparator) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidDocument.Message,
			fmt.Errorf("document ID %q must not contain %q", d.ID, chunkKeySeparator))
	}
	if d.Timestamp.IsZero() {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidDocument.Message, fmt.Errorf("document %s has no timestamp", d.ID))
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
