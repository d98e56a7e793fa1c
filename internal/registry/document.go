package registry

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an uploaded document.
type Status string

const (
	// StatusProcessing is the initial state, set once extraction succeeds
	// and before the engine insert is attempted.
	StatusProcessing Status = "processing"
	// StatusCompleted means the engine accepted the document.
	StatusCompleted Status = "completed"
	// StatusFailed means the engine rejected the document.
	StatusFailed Status = "failed"
	// StatusError marks a record abandoned by an unexpected failure after
	// creation. Terminal, like failed; the client re-uploads to retry.
	StatusError Status = "error"
)

// Document is the metadata and lifecycle record for one uploaded file.
// TextContent is retained for the engine but never serialized in API
// responses.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	TextLength  int       `json:"text_length"`
	Status      Status    `json:"status"`
	UploadTime  time.Time `json:"upload_time"`
	TextContent string    `json:"-"`
}

// Documents is the registry of uploaded documents.
type Documents struct {
	store Store[Document]
}

// NewDocuments creates a document registry over an in-memory store.
func NewDocuments() *Documents {
	return &Documents{store: NewMemoryStore[Document]()}
}

// Create records a new document in processing state and returns it. The id
// is generated here and never reused.
func (d *Documents) Create(filename, contentType string, size int64, text string) (Document, error) {
	doc := Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		TextLength:  utf8.RuneCountInString(text),
		Status:      StatusProcessing,
		UploadTime:  time.Now().UTC(),
		TextContent: text,
	}
	if err := d.store.Create(doc.ID, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get returns the document with the given id.
func (d *Documents) Get(id string) (Document, error) {
	return d.store.Get(id)
}

// List returns all documents ordered by upload time ascending. Ties are
// broken by id so the ordering is deterministic.
func (d *Documents) List() []Document {
	docs := d.store.List()
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadTime.Equal(docs[j].UploadTime) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadTime.Before(docs[j].UploadTime)
	})
	return docs
}

// UpdateStatus transitions the document to the given status.
func (d *Documents) UpdateStatus(id string, status Status) (Document, error) {
	return d.store.Update(id, func(doc Document) Document {
		doc.Status = status
		return doc
	})
}

// Delete removes the document with the given id.
func (d *Documents) Delete(id string) error {
	return d.store.Delete(id)
}

// Len returns the number of documents in the registry.
func (d *Documents) Len() int {
	return d.store.Len()
}

// CompletedCount returns how many documents reached completed state.
func (d *Documents) CompletedCount() int {
	count := 0
	for _, doc := range d.store.List() {
		if doc.Status == StatusCompleted {
			count++
		}
	}
	return count
}

// RecentCompleted returns the filenames of the most recently uploaded
// completed documents, newest first, capped at n.
func (d *Documents) RecentCompleted(n int) []string {
	var completed []Document
	for _, doc := range d.store.List() {
		if doc.Status == StatusCompleted {
			completed = append(completed, doc)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].UploadTime.After(completed[j].UploadTime)
	})

	if n > len(completed) {
		n = len(completed)
	}
	names := make([]string, 0, n)
	for _, doc := range completed[:n] {
		names = append(names, doc.Filename)
	}
	return names
}
