// Package engine implements the knowledge engine: chunking, embedding,
// entity/relationship extraction into an in-memory knowledge graph, and
// mode-selectable querying over the result.
package engine

import (
	"fmt"
	"time"
)

// Mode selects the retrieval strategy for a query.
type Mode string

const (
	// ModeLocal retrieves the neighborhood of the entities mentioned in
	// the query.
	ModeLocal Mode = "local"
	// ModeGlobal retrieves a graph-wide view ranked by connectivity.
	ModeGlobal Mode = "global"
	// ModeHybrid combines local and global retrieval.
	ModeHybrid Mode = "hybrid"
	// ModeNaive retrieves by vector similarity only, no graph.
	ModeNaive Mode = "naive"
	// ModeMix combines graph retrieval with vector similarity.
	ModeMix Mode = "mix"
)

// Modes lists every valid query mode.
var Modes = []Mode{ModeLocal, ModeGlobal, ModeHybrid, ModeNaive, ModeMix}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid query mode %q, must be one of %v", s, Modes)
}

// Chunk is one embedded slice of an inserted document.
type Chunk struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Source  string    `json:"source,omitempty"`
	Vector  []float32 `json:"-"`
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Relationship is an edge between two entities.
type Relationship struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is a chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Stats summarizes the engine's stored knowledge.
type Stats struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Chunks        int `json:"chunks"`
}

// Config carries the engine's tunables.
type Config struct {
	// WorkingDir is where the engine snapshots its graph and chunks.
	WorkingDir   string
	ChunkSize    int
	ChunkOverlap int
	// TopK bounds retrieval size per mode.
	TopK int
	// EntityTypes steers LLM entity extraction.
	EntityTypes []string
}

// DefaultEntityTypes are the entity types used when none are configured.
var DefaultEntityTypes = []string{
	"PERSON",
	"ORGANIZATION",
	"LOCATION",
	"DATE",
	"PRODUCT",
	"EVENT",
	"CONCEPT",
	"TECHNOLOGY",
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 512
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 50
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if len(c.EntityTypes) == 0 {
		c.EntityTypes = DefaultEntityTypes
	}
	return c
}
