// ABOUTME: Document is the raw extracted text a caller hands to ingestion
// ABOUTME: Text extraction itself happens outside this module
package models

import (
	"strings"

	"github.com/google/uuid"
)

// Document is one source document to be chunked and indexed
type Document struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewDocument creates a document, assigning an ID when none is given
func NewDocument(id, text string, metadata map[string]string) Document {
	if strings.TrimSpace(id) == "" {
		id = GenerateDocumentID()
	}
	return Document{ID: id, Text: text, Metadata: CloneMetadata(metadata)}
}

// DocumentsFromTexts wraps bare strings as documents with generated IDs
func DocumentsFromTexts(texts []string) []Document {
	docs := make([]Document, 0, len(texts))
	for _, t := range texts {
		docs = append(docs, NewDocument("", t, nil))
	}
	return docs
}

// IsBlank reports whether the document carries no indexable text
func (d Document) IsBlank() bool {
	return strings.TrimSpace(d.Text) == ""
}

// GenerateDocumentID generates a unique document identifier
func GenerateDocumentID() string {
	return "doc_" + uuid.New().String()
}

// GenerateChunkID generates a unique chunk identifier
func GenerateChunkID() string {
	return "chunk_" + uuid.New().String()
}
