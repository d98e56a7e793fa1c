package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/knograph/knograph/internal/logging"
)

const (
	entityExtractionPrompt = `Extract entities from the following text. Focus on these entity types: %s.
Return only a JSON response with this structure:
{
  "entities": [
    {
      "name": "entity_name",
      "type": "entity_type",
      "description": "brief description"
    }
  ]
}

Text: %s
`

	relationshipExtractionPrompt = `Extract relationships between the following entities from this text.
Consider relationships like: works_with, located_in, created_by, part_of, related_to, etc.
Return only a JSON response with this structure:
{
  "relationships": [
    {
      "source": "entity1_name",
      "target": "entity2_name",
      "type": "relationship_type"
    }
  ]
}

Text: %s
Entities: %s
`

	answerPrompt = `You are a helpful assistant answering questions about a knowledge base.
Answer the question using only the context below. If the context does not
contain the answer, say so.

Context:
%s

Question: %s

Answer:`

	emptyKnowledgeAnswer = "No relevant information found in the knowledge base. Please upload documents first."
)

// Engine is the knowledge engine. It chunks and embeds inserted text,
// extracts entities and relationships into a knowledge graph, and
// answers queries with mode-selectable retrieval.
type Engine struct {
	config   Config
	llm      LLM
	embedder Embedder
	graph    *Graph
	vectors  *VectorStore
	cache    QueryCache
	splitter textsplitter.TextSplitter
	log      logging.Logger
}

// New creates an engine and loads any snapshot present in the working
// directory.
func New(cfg Config, llm LLM, embedder Embedder, cache QueryCache, log logging.Logger) (*Engine, error) {
	return NewWithGraph(cfg, llm, embedder, cache, NewGraph(), log)
}

// NewWithGraph creates an engine over a caller-owned graph, letting
// read-side consumers share it.
func NewWithGraph(cfg Config, llm LLM, embedder Embedder, cache QueryCache, graph *Graph, log logging.Logger) (*Engine, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	cfg = cfg.withDefaults()
	if cache == nil {
		cache = NoopCache{}
	}
	if graph == nil {
		graph = NewGraph()
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}

	e := &Engine{
		config:   cfg,
		llm:      llm,
		embedder: embedder,
		graph:    graph,
		vectors:  NewVectorStore(),
		cache:    cache,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		log: log,
	}

	if cfg.WorkingDir != "" {
		if err := e.loadSnapshot(); err != nil {
			log.Warn("no snapshot loaded from %s: %v", cfg.WorkingDir, err)
		}
	}
	return e, nil
}

// Insert chunks, embeds and indexes text, then extracts entities and
// relationships into the knowledge graph.
func (e *Engine) Insert(ctx context.Context, text, source string) error {
	chunks, err := e.splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("failed to split text: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no content to insert")
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	stored := make([]Chunk, len(chunks))
	for i, content := range chunks {
		stored[i] = Chunk{
			ID:      uuid.NewString(),
			Content: content,
			Source:  source,
			Vector:  vectors[i],
		}
	}
	e.vectors.Add(stored)

	for _, content := range chunks {
		entities := e.extractEntities(ctx, content)
		for _, ent := range entities {
			e.graph.AddEntity(ent)
		}
		for _, rel := range e.extractRelationships(ctx, content, entities) {
			e.graph.AddRelationship(rel)
		}
	}

	entityCount, relCount := e.graph.Counts()
	e.log.Info("inserted %d chunks from %s, graph now has %d entities and %d relationships",
		len(chunks), source, entityCount, relCount)

	if e.config.WorkingDir != "" {
		if err := e.saveSnapshot(); err != nil {
			e.log.Warn("failed to save snapshot: %v", err)
		}
	}
	return nil
}

// Query answers a question using the given retrieval mode.
func (e *Engine) Query(ctx context.Context, mode Mode, query string) (string, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return "", err
	}

	if answer, ok := e.cache.Get(ctx, mode, query); ok {
		e.log.Debug("cache hit for %s query", mode)
		return answer, nil
	}

	contextStr, err := e.buildContext(ctx, mode, query)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(contextStr) == "" {
		return emptyKnowledgeAnswer, nil
	}

	answer, err := e.llm.Generate(ctx, fmt.Sprintf(answerPrompt, contextStr, query))
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	e.cache.Set(ctx, mode, query, answer)
	return answer, nil
}

func (e *Engine) buildContext(ctx context.Context, mode Mode, query string) (string, error) {
	switch mode {
	case ModeNaive:
		return e.vectorContext(ctx, query)
	case ModeLocal:
		return e.localContext(ctx, query), nil
	case ModeGlobal:
		return e.globalContext(), nil
	case ModeHybrid:
		return joinSections(e.localContext(ctx, query), e.globalContext()), nil
	case ModeMix:
		vec, err := e.vectorContext(ctx, query)
		if err != nil {
			return "", err
		}
		return joinSections(e.localContext(ctx, query), vec), nil
	default:
		return "", fmt.Errorf("invalid query mode %q", mode)
	}
}

// vectorContext retrieves the most similar chunks to the query.
func (e *Engine) vectorContext(ctx context.Context, query string) (string, error) {
	if e.vectors.Len() == 0 {
		return "", nil
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	results := e.vectors.Search(queryVec, e.config.TopK)
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Document Excerpts:\n")
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(r.Chunk.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// localContext retrieves the neighborhood of the entities mentioned in
// the query.
func (e *Engine) localContext(ctx context.Context, query string) string {
	terms := make([]string, 0)
	for _, ent := range e.extractEntities(ctx, query) {
		terms = append(terms, ent.Name)
	}
	terms = append(terms, significantWords(query)...)

	matched := e.graph.FindEntities(terms)
	if len(matched) > e.config.TopK {
		matched = matched[:e.config.TopK]
	}

	entities := make([]Entity, 0, len(matched))
	var rels []Relationship
	seen := make(map[string]bool)
	for _, ent := range matched {
		if !seen[ent.ID] {
			seen[ent.ID] = true
			entities = append(entities, ent)
		}
		related, connecting := e.graph.Related(ent.ID, e.config.TopK)
		for _, r := range related {
			if !seen[r.ID] {
				seen[r.ID] = true
				entities = append(entities, r)
			}
		}
		rels = append(rels, connecting...)
	}
	return graphContext("Entities Related to the Question", entities, rels)
}

// globalContext summarizes the most connected part of the graph.
func (e *Engine) globalContext() string {
	entities, rels := e.graph.TopByDegree(e.config.TopK * 2)
	return graphContext("Knowledge Graph Overview", entities, rels)
}

func graphContext(title string, entities []Entity, rels []Relationship) string {
	if len(entities) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":\n")
	for _, ent := range entities {
		b.WriteString(fmt.Sprintf("- %s (%s)", ent.Name, ent.Type))
		if ent.Description != "" {
			b.WriteString(": ")
			b.WriteString(ent.Description)
		}
		b.WriteString("\n")
	}
	if len(rels) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, rel := range rels {
			b.WriteString(fmt.Sprintf("- %s -> %s (%s)\n", rel.Source, rel.Target, rel.Type))
		}
	}
	return b.String()
}

func joinSections(sections ...string) string {
	nonEmpty := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

type extractedEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type entityExtractionResult struct {
	Entities []extractedEntity `json:"entities"`
}

type extractedRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type relationshipExtractionResult struct {
	Relationships []extractedRelationship `json:"relationships"`
}

// extractEntities asks the LLM for entities, falling back to heuristic
// extraction when the response is not parseable JSON.
func (e *Engine) extractEntities(ctx context.Context, text string) []Entity {
	prompt := fmt.Sprintf(entityExtractionPrompt, strings.Join(e.config.EntityTypes, ", "), text)

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		e.log.Warn("entity extraction failed, using heuristic fallback: %v", err)
		return heuristicEntities(text)
	}

	var result entityExtractionResult
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &result); err != nil {
		return heuristicEntities(text)
	}

	entities := make([]Entity, 0, len(result.Entities))
	for _, ext := range result.Entities {
		name := strings.TrimSpace(ext.Name)
		if name == "" {
			continue
		}
		entType := strings.ToUpper(strings.TrimSpace(ext.Type))
		if entType == "" {
			entType = "UNKNOWN"
		}
		entities = append(entities, Entity{
			ID:          normalizeEntityID(name),
			Name:        name,
			Type:        entType,
			Description: strings.TrimSpace(ext.Description),
		})
	}
	return entities
}

// extractRelationships asks the LLM for relationships between the given
// entities, falling back to co-occurrence pairing.
func (e *Engine) extractRelationships(ctx context.Context, text string, entities []Entity) []Relationship {
	if len(entities) < 2 {
		return nil
	}

	names := make([]string, len(entities))
	for i, ent := range entities {
		names[i] = fmt.Sprintf("%s (%s)", ent.Name, ent.Type)
	}
	prompt := fmt.Sprintf(relationshipExtractionPrompt, text, strings.Join(names, ", "))

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		e.log.Warn("relationship extraction failed, using heuristic fallback: %v", err)
		return heuristicRelationships(entities)
	}

	var result relationshipExtractionResult
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &result); err != nil {
		return heuristicRelationships(entities)
	}

	rels := make([]Relationship, 0, len(result.Relationships))
	for _, ext := range result.Relationships {
		if ext.Source == "" || ext.Target == "" {
			continue
		}
		relType := strings.TrimSpace(ext.Type)
		if relType == "" {
			relType = "related_to"
		}
		rels = append(rels, Relationship{
			Source: ext.Source,
			Target: ext.Target,
			Type:   relType,
		})
	}
	return rels
}

// heuristicEntities treats capitalized words as candidate entities.
func heuristicEntities(text string) []Entity {
	seen := make(map[string]bool)
	var entities []Entity
	for _, word := range strings.Fields(text) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		runes := []rune(word)
		if len(runes) < 3 || !unicode.IsUpper(runes[0]) {
			continue
		}
		id := normalizeEntityID(word)
		if seen[id] {
			continue
		}
		seen[id] = true
		entities = append(entities, Entity{
			ID:   id,
			Name: word,
			Type: "UNKNOWN",
		})
	}
	return entities
}

// heuristicRelationships connects co-occurring entities pairwise.
func heuristicRelationships(entities []Entity) []Relationship {
	var rels []Relationship
	for i, a := range entities {
		for _, b := range entities[i+1:] {
			rels = append(rels, Relationship{
				Source: a.Name,
				Target: b.Name,
				Type:   "related_to",
			})
		}
	}
	return rels
}

// significantWords returns the query words long enough to be useful
// graph lookup terms.
func significantWords(query string) []string {
	var words []string
	for _, word := range strings.Fields(query) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(word)) >= 3 {
			words = append(words, word)
		}
	}
	return words
}

// stripCodeFences unwraps an LLM response wrapped in markdown fences.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Stats reports the engine's stored knowledge totals.
func (e *Engine) Stats() Stats {
	entities, relationships := e.graph.Counts()
	return Stats{
		Entities:      entities,
		Relationships: relationships,
		Chunks:        e.vectors.Len(),
	}
}

// Graph exposes the knowledge graph for read-side consumers.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Clear drops all stored knowledge and removes the snapshot files.
func (e *Engine) Clear() error {
	e.graph.Clear()
	e.vectors.Clear()
	if e.config.WorkingDir == "" {
		return nil
	}
	for _, name := range []string{graphSnapshotFile, chunkSnapshotFile} {
		if err := os.Remove(filepath.Join(e.config.WorkingDir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close persists a final snapshot and releases the cache connection.
func (e *Engine) Close() error {
	if e.config.WorkingDir != "" {
		if err := e.saveSnapshot(); err != nil {
			e.log.Warn("failed to save snapshot on close: %v", err)
		}
	}
	return e.cache.Close()
}

const (
	graphSnapshotFile = "graph.json"
	chunkSnapshotFile = "chunks.json"
)

type graphSnapshot struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	SavedAt       time.Time      `json:"saved_at"`
}

type chunkSnapshot struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Source  string    `json:"source,omitempty"`
	Vector  []float32 `json:"vector"`
}

func (e *Engine) saveSnapshot() error {
	entities, relationships := e.graph.All()
	snap := graphSnapshot{
		Entities:      entities,
		Relationships: relationships,
		SavedAt:       time.Now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(e.config.WorkingDir, graphSnapshotFile), data, 0o644); err != nil {
		return err
	}

	chunks := e.vectors.All()
	stored := make([]chunkSnapshot, len(chunks))
	for i, c := range chunks {
		stored[i] = chunkSnapshot{ID: c.ID, Content: c.Content, Source: c.Source, Vector: c.Vector}
	}
	data, err = json.Marshal(stored)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.config.WorkingDir, chunkSnapshotFile), data, 0o644)
}

func (e *Engine) loadSnapshot() error {
	data, err := os.ReadFile(filepath.Join(e.config.WorkingDir, graphSnapshotFile))
	if err != nil {
		return err
	}
	var snap graphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("corrupt graph snapshot: %w", err)
	}
	e.graph.Restore(snap.Entities, snap.Relationships)

	data, err = os.ReadFile(filepath.Join(e.config.WorkingDir, chunkSnapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var stored []chunkSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("corrupt chunk snapshot: %w", err)
	}
	chunks := make([]Chunk, len(stored))
	for i, c := range stored {
		chunks[i] = Chunk{ID: c.ID, Content: c.Content, Source: c.Source, Vector: c.Vector}
	}
	e.vectors.Restore(chunks)
	return nil
}
