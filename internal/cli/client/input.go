package client

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

const maxRecordBytes = 16 << 20

// ReadDocuments parses one JSON document record per line. Blank lines are
// skipped; the first malformed record fails the whole read with its line
// number.
func ReadDocuments(r io.Reader) ([]*domain.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)

	var docs []*domain.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		doc, err := domain.DecodeDocumentRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// ReadDocumentsFile reads a JSONL file, or stdin when path is "-".
func ReadDocumentsFile(path string) ([]*domain.Document, error) {
	if path == "-" {
		return ReadDocuments(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	docs, err := ReadDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// ReadDocumentFile reads a single JSON document record.
func ReadDocumentFile(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := domain.DecodeDocumentRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
