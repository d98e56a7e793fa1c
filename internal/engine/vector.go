package engine

import (
	"math"
	"sort"
	"sync"
)

// VectorStore is an in-memory vector index over chunks. All methods are
// safe for concurrent use.
type VectorStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewVectorStore creates an empty vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

// Add appends chunks with their embeddings.
func (s *VectorStore) Add(chunks []Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
}

// Search returns the k chunks most similar to the query embedding,
// best first.
func (s *VectorStore) Search(query []float32, k int) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.chunks) == 0 {
		return nil
	}

	results := make([]SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		results = append(results, SearchResult{
			Chunk: c,
			Score: cosineSimilarity(query, c.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// Len reports the number of stored chunks.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// All returns a copy of every stored chunk.
func (s *VectorStore) All() []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Restore replaces the store contents, used when loading a snapshot.
func (s *VectorStore) Restore(chunks []Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = chunks
}

// Clear removes every stored chunk.
func (s *VectorStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
