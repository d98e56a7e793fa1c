package registry

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// KnowledgeBase is a named logical grouping of documents. Counts are
// advisory: document_count is recomputed from the document registry at
// stats-read time, not maintained transactionally.
type KnowledgeBase struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	CreatedDate       time.Time `json:"created_date"`
	LastUpdated       time.Time `json:"last_updated"`
	DocumentCount     int       `json:"document_count"`
	EntityCount       int       `json:"entity_count"`
	RelationshipCount int       `json:"relationship_count"`
	Status            string    `json:"status"` // active, inactive, processing
}

// KnowledgeBaseUpdate carries the optional fields of an update request.
// Nil means "leave unchanged".
type KnowledgeBaseUpdate struct {
	Name        *string
	Description *string
}

// KnowledgeBases is the registry of knowledge bases.
type KnowledgeBases struct {
	store Store[KnowledgeBase]
}

// NewKnowledgeBases creates a knowledge-base registry over an in-memory
// store.
func NewKnowledgeBases() *KnowledgeBases {
	return &KnowledgeBases{store: NewMemoryStore[KnowledgeBase]()}
}

// Create registers a new knowledge base in active state.
func (k *KnowledgeBases) Create(name, description string) (KnowledgeBase, error) {
	now := time.Now().UTC()
	kb := KnowledgeBase{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedDate: now,
		LastUpdated: now,
		Status:      "active",
	}
	if err := k.store.Create(kb.ID, kb); err != nil {
		return KnowledgeBase{}, err
	}
	return kb, nil
}

// Get returns the knowledge base with the given id.
func (k *KnowledgeBases) Get(id string) (KnowledgeBase, error) {
	return k.store.Get(id)
}

// List returns all knowledge bases ordered by creation date, newest first.
func (k *KnowledgeBases) List() []KnowledgeBase {
	kbs := k.store.List()
	sort.Slice(kbs, func(i, j int) bool {
		if kbs[i].CreatedDate.Equal(kbs[j].CreatedDate) {
			return kbs[i].ID < kbs[j].ID
		}
		return kbs[i].CreatedDate.After(kbs[j].CreatedDate)
	})
	return kbs
}

// Update applies the provided fields and refreshes last_updated.
func (k *KnowledgeBases) Update(id string, update KnowledgeBaseUpdate) (KnowledgeBase, error) {
	return k.store.Update(id, func(kb KnowledgeBase) KnowledgeBase {
		if update.Name != nil {
			kb.Name = *update.Name
		}
		if update.Description != nil {
			kb.Description = *update.Description
		}
		kb.LastUpdated = time.Now().UTC()
		return kb
	})
}

// Delete removes the knowledge base with the given id.
func (k *KnowledgeBases) Delete(id string) error {
	return k.store.Delete(id)
}

// Len returns the number of knowledge bases.
func (k *KnowledgeBases) Len() int {
	return k.store.Len()
}
