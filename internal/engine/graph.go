package engine

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Graph is an in-memory knowledge graph. All methods are safe for
// concurrent use.
type Graph struct {
	mu            sync.RWMutex
	entities      map[string]Entity
	relationships map[string]Relationship
	typeIndex     map[string][]string
}

// NewGraph creates an empty knowledge graph.
func NewGraph() *Graph {
	return &Graph{
		entities:      make(map[string]Entity),
		relationships: make(map[string]Relationship),
		typeIndex:     make(map[string][]string),
	}
}

func normalizeEntityID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddEntity inserts an entity, merging with an existing entity of the
// same name. A merge keeps the earlier creation time and fills in a
// missing description.
func (g *Graph) AddEntity(e Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e.ID == "" {
		e.ID = normalizeEntityID(e.Name)
	}
	now := time.Now().UTC()

	if existing, ok := g.entities[e.ID]; ok {
		existing.UpdatedAt = now
		if existing.Description == "" {
			existing.Description = e.Description
		}
		g.entities[e.ID] = existing
		return
	}

	e.CreatedAt = now
	e.UpdatedAt = now
	g.entities[e.ID] = e
	g.typeIndex[e.Type] = append(g.typeIndex[e.Type], e.ID)
}

// AddRelationship inserts a relationship. Both endpoints must already
// exist; unknown endpoints are dropped silently to keep the graph
// consistent with partially parsed extraction output.
func (g *Graph) AddRelationship(r Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	src := normalizeEntityID(r.Source)
	dst := normalizeEntityID(r.Target)
	if _, ok := g.entities[src]; !ok {
		return
	}
	if _, ok := g.entities[dst]; !ok {
		return
	}

	if r.ID == "" {
		r.ID = src + "_" + r.Type + "_" + dst
	}
	if _, ok := g.relationships[r.ID]; ok {
		return
	}
	r.Source = src
	r.Target = dst
	r.CreatedAt = time.Now().UTC()
	g.relationships[r.ID] = r
}

// GetEntity looks up an entity by normalized name.
func (g *Graph) GetEntity(name string) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entities[normalizeEntityID(name)]
	return e, ok
}

// FindEntities returns entities whose name contains any of the given
// terms, case-insensitively.
func (g *Graph) FindEntities(terms []string) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var found []Entity
	for _, term := range terms {
		t := normalizeEntityID(term)
		if t == "" {
			continue
		}
		for id, e := range g.entities {
			if seen[id] {
				continue
			}
			if strings.Contains(id, t) || strings.Contains(t, id) {
				seen[id] = true
				found = append(found, e)
			}
		}
	}
	sortEntities(found)
	return found
}

// Related returns the entities directly connected to the given entity,
// together with the connecting relationships.
func (g *Graph) Related(entityID string, limit int) ([]Entity, []Relationship) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id := normalizeEntityID(entityID)
	visited := make(map[string]bool)
	var entities []Entity
	var rels []Relationship

	for _, rel := range g.relationships {
		var other string
		switch id {
		case rel.Source:
			other = rel.Target
		case rel.Target:
			other = rel.Source
		default:
			continue
		}
		rels = append(rels, rel)
		if visited[other] {
			continue
		}
		visited[other] = true
		if e, ok := g.entities[other]; ok {
			entities = append(entities, e)
		}
	}

	sortEntities(entities)
	sortRelationships(rels)
	if limit > 0 && len(entities) > limit {
		entities = entities[:limit]
	}
	if limit > 0 && len(rels) > limit {
		rels = rels[:limit]
	}
	return entities, rels
}

// TopByDegree returns the most connected entities, for graph-wide
// summaries.
func (g *Graph) TopByDegree(limit int) ([]Entity, []Relationship) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	degree := make(map[string]int, len(g.entities))
	for _, rel := range g.relationships {
		degree[rel.Source]++
		degree[rel.Target]++
	}

	entities := make([]Entity, 0, len(g.entities))
	for _, e := range g.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		di, dj := degree[entities[i].ID], degree[entities[j].ID]
		if di != dj {
			return di > dj
		}
		return entities[i].ID < entities[j].ID
	})
	if limit > 0 && len(entities) > limit {
		entities = entities[:limit]
	}

	keep := make(map[string]bool, len(entities))
	for _, e := range entities {
		keep[e.ID] = true
	}
	var rels []Relationship
	for _, rel := range g.relationships {
		if keep[rel.Source] && keep[rel.Target] {
			rels = append(rels, rel)
		}
	}
	sortRelationships(rels)
	return entities, rels
}

// All returns every entity and relationship in deterministic order.
func (g *Graph) All() ([]Entity, []Relationship) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entities := make([]Entity, 0, len(g.entities))
	for _, e := range g.entities {
		entities = append(entities, e)
	}
	rels := make([]Relationship, 0, len(g.relationships))
	for _, r := range g.relationships {
		rels = append(rels, r)
	}
	sortEntities(entities)
	sortRelationships(rels)
	return entities, rels
}

// Counts reports entity and relationship totals.
// EntitiesByType returns the entities of the given type via the type
// index. Matching is case-insensitive; results are ordered by ID.
func (g *Graph) EntitiesByType(entityType string) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Entity
	for t, ids := range g.typeIndex {
		if !strings.EqualFold(t, entityType) {
			continue
		}
		for _, id := range ids {
			if e, ok := g.entities[id]; ok {
				out = append(out, e)
			}
		}
	}
	sortEntities(out)
	return out
}

func (g *Graph) Counts() (entities, relationships int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities), len(g.relationships)
}

// Clear removes every entity and relationship.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entities = make(map[string]Entity)
	g.relationships = make(map[string]Relationship)
	g.typeIndex = make(map[string][]string)
}

// Restore replaces the graph contents, used when loading a snapshot.
func (g *Graph) Restore(entities []Entity, relationships []Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entities = make(map[string]Entity, len(entities))
	g.typeIndex = make(map[string][]string)
	for _, e := range entities {
		if e.ID == "" {
			e.ID = normalizeEntityID(e.Name)
		}
		g.entities[e.ID] = e
		g.typeIndex[e.Type] = append(g.typeIndex[e.Type], e.ID)
	}
	g.relationships = make(map[string]Relationship, len(relationships))
	for _, r := range relationships {
		g.relationships[r.ID] = r
	}
}

func sortEntities(entities []Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
}

func sortRelationships(rels []Relationship) {
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
}
