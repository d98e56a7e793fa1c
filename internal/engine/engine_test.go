package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM routes on the prompt shape: extraction prompts get canned
// JSON, everything else gets the configured answer.
type fakeLLM struct {
	entityJSON       string
	relationshipJSON string
	answer           string
	generateCalls    atomic.Int64
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.generateCalls.Add(1)
	switch {
	case strings.Contains(prompt, "Extract entities"):
		return f.entityJSON, nil
	case strings.Contains(prompt, "Extract relationships"):
		return f.relationshipJSON, nil
	default:
		return f.answer, nil
	}
}

// fakeEmbedder produces deterministic vectors from character content so
// identical texts embed identically.
type fakeEmbedder struct{}

func (fakeEmbedder) embed(text string) []float32 {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 97)
	}
	return vec
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

func (f fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.embed(t)
	}
	return out, nil
}

const testEntityJSON = `{
  "entities": [
    {"name": "Marie Curie", "type": "PERSON", "description": "physicist and chemist"},
    {"name": "Sorbonne", "type": "ORGANIZATION", "description": "university in Paris"},
    {"name": "Radium", "type": "CONCEPT", "description": "radioactive element"}
  ]
}`

const testRelationshipJSON = `{
  "relationships": [
    {"source": "Marie Curie", "target": "Sorbonne", "type": "works_at"},
    {"source": "Marie Curie", "target": "Radium", "type": "discovered"}
  ]
}`

func newTestEngine(t *testing.T, llm LLM, cache QueryCache) *Engine {
	t.Helper()
	e, err := New(Config{
		WorkingDir:   t.TempDir(),
		ChunkSize:    200,
		ChunkOverlap: 20,
		TopK:         5,
	}, llm, fakeEmbedder{}, cache, nil)
	require.NoError(t, err)
	return e
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{}, nil, fakeEmbedder{}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{}, &fakeLLM{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		parsed, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMode("graph")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query mode")
}

func TestInsertBuildsGraphAndIndex(t *testing.T) {
	llm := &fakeLLM{entityJSON: testEntityJSON, relationshipJSON: testRelationshipJSON, answer: "ok"}
	e := newTestEngine(t, llm, nil)

	err := e.Insert(context.Background(),
		"Marie Curie worked at the Sorbonne and discovered radium.", "bio.txt")
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 2, stats.Relationships)
	assert.Equal(t, 1, stats.Chunks)

	ent, ok := e.Graph().GetEntity("Marie Curie")
	require.True(t, ok)
	assert.Equal(t, "PERSON", ent.Type)
	assert.Equal(t, "physicist and chemist", ent.Description)
}

func TestQueryModes(t *testing.T) {
	llm := &fakeLLM{
		entityJSON:       testEntityJSON,
		relationshipJSON: testRelationshipJSON,
		answer:           "Marie Curie discovered radium.",
	}
	e := newTestEngine(t, llm, nil)
	require.NoError(t, e.Insert(context.Background(),
		"Marie Curie worked at the Sorbonne and discovered radium.", "bio.txt"))

	for _, mode := range Modes {
		answer, err := e.Query(context.Background(), mode, "Who discovered radium?")
		require.NoError(t, err, "mode %s", mode)
		assert.Equal(t, "Marie Curie discovered radium.", answer, "mode %s", mode)
	}
}

func TestQueryInvalidMode(t *testing.T) {
	e := newTestEngine(t, &fakeLLM{answer: "ok"}, nil)

	_, err := e.Query(context.Background(), Mode("best"), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query mode")
}

func TestQueryEmptyKnowledge(t *testing.T) {
	e := newTestEngine(t, &fakeLLM{entityJSON: testEntityJSON, answer: "should not be used"}, nil)

	for _, mode := range Modes {
		answer, err := e.Query(context.Background(), mode, "Who discovered radium?")
		require.NoError(t, err, "mode %s", mode)
		assert.Equal(t, emptyKnowledgeAnswer, answer, "mode %s", mode)
	}
}

func TestExtractionFallsBackOnBadJSON(t *testing.T) {
	llm := &fakeLLM{
		entityJSON:       "sorry, I cannot produce JSON today",
		relationshipJSON: "still not JSON",
		answer:           "ok",
	}
	e := newTestEngine(t, llm, nil)

	err := e.Insert(context.Background(), "Marie Curie visited Paris with Pierre.", "note.txt")
	require.NoError(t, err)

	stats := e.Stats()
	assert.Greater(t, stats.Entities, 0)
	assert.Greater(t, stats.Relationships, 0)

	_, ok := e.Graph().GetEntity("Marie")
	assert.True(t, ok)
}

func TestFencedExtractionResponse(t *testing.T) {
	llm := &fakeLLM{
		entityJSON:       "```json\n" + testEntityJSON + "\n```",
		relationshipJSON: "```json\n" + testRelationshipJSON + "\n```",
		answer:           "ok",
	}
	e := newTestEngine(t, llm, nil)

	require.NoError(t, e.Insert(context.Background(), "Marie Curie at the Sorbonne.", "bio.txt"))

	stats := e.Stats()
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 2, stats.Relationships)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	llm := &fakeLLM{entityJSON: testEntityJSON, relationshipJSON: testRelationshipJSON, answer: "from snapshot"}

	e, err := New(Config{WorkingDir: dir}, llm, fakeEmbedder{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Insert(context.Background(),
		"Marie Curie worked at the Sorbonne and discovered radium.", "bio.txt"))
	require.NoError(t, e.Close())

	restored, err := New(Config{WorkingDir: dir}, llm, fakeEmbedder{}, nil, nil)
	require.NoError(t, err)

	stats := restored.Stats()
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 2, stats.Relationships)
	assert.Equal(t, 1, stats.Chunks)

	answer, err := restored.Query(context.Background(), ModeNaive, "Who discovered radium?")
	require.NoError(t, err)
	assert.Equal(t, "from snapshot", answer)
}

func TestClearRemovesSnapshot(t *testing.T) {
	llm := &fakeLLM{entityJSON: testEntityJSON, relationshipJSON: testRelationshipJSON, answer: "ok"}
	e := newTestEngine(t, llm, nil)
	require.NoError(t, e.Insert(context.Background(), "Marie Curie discovered radium.", "bio.txt"))

	require.NoError(t, e.Clear())

	stats := e.Stats()
	assert.Zero(t, stats.Entities)
	assert.Zero(t, stats.Relationships)
	assert.Zero(t, stats.Chunks)
}

func TestQueryUsesCache(t *testing.T) {
	srv := miniredis.RunT(t)
	cache, err := NewRedisCache(RedisCacheOptions{URL: "redis://" + srv.Addr(), TTL: time.Minute})
	require.NoError(t, err)

	llm := &fakeLLM{entityJSON: testEntityJSON, relationshipJSON: testRelationshipJSON, answer: "cached answer"}
	e := newTestEngine(t, llm, cache)
	require.NoError(t, e.Insert(context.Background(),
		"Marie Curie worked at the Sorbonne and discovered radium.", "bio.txt"))

	first, err := e.Query(context.Background(), ModeNaive, "Who discovered radium?")
	require.NoError(t, err)
	callsAfterFirst := llm.generateCalls.Load()

	second, err := e.Query(context.Background(), ModeNaive, "Who discovered radium?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, llm.generateCalls.Load())

	// Expired entries are misses again.
	srv.FastForward(2 * time.Minute)
	_, err = e.Query(context.Background(), ModeNaive, "Who discovered radium?")
	require.NoError(t, err)
	assert.Greater(t, llm.generateCalls.Load(), callsAfterFirst)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
