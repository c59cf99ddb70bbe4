package service

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// ParagraphSeparator joins chunks back into document text.
const ParagraphSeparator = "\n\n"

// paragraphBreak matches a blank line, optionally containing whitespace, and
// any blank lines that follow it.
var paragraphBreak = regexp.MustCompile(`\n[ \t\f\v]*\n\s*`)

// SplitParagraphs splits text on blank lines (and U+2029) into trimmed,
// non-empty chunks indexed from 1. Text without paragraph breaks yields one
// chunk; blank text yields none.
func SplitParagraphs(documentID, text string) []domain.Chunk {
	clean := strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u2029", ParagraphSeparator).Replace(text)

	chunks := make([]domain.Chunk, 0, 8)
	for _, part := range paragraphBreak.Split(clean, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Index:      len(chunks) + 1,
			Text:       part,
		})
	}
	return chunks
}

// SplitDocument splits a document's text.
func SplitDocument(doc *domain.Document) []domain.Chunk {
	return SplitParagraphs(doc.ID, doc.Text)
}

// SplitDocuments splits every document, preserving document order.
func SplitDocuments(docs []*domain.Document) []domain.Chunk {
	var out []domain.Chunk
	for _, d := range docs {
		out = append(out, SplitDocument(d)...)
	}
	return out
}

// JoinChunks reverses SplitParagraphs up to whitespace normalization.
func JoinChunks(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, ParagraphSeparator)
}
