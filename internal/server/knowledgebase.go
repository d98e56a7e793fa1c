package server

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/knograph/knograph/internal/registry"
)

type kbCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type kbUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type kbStatsResponse struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	TotalDocuments     int              `json:"total_documents"`
	TotalEntities      int              `json:"total_entities"`
	TotalRelationships int              `json:"total_relationships"`
	TotalSizeMB        float64          `json:"total_size_mb"`
	LastQueryDate      *time.Time       `json:"last_query_date"`
	QueryCount         int              `json:"query_count"`
	MostCommonEntities []map[string]any `json:"most_common_entities"`
	RecentDocuments    []string         `json:"recent_documents"`
}

func (s *Server) createKnowledgeBase(c *gin.Context) {
	var req kbCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.error(c, http.StatusBadRequest, "Knowledge base name is required")
		return
	}

	kb, err := s.kbs.Create(req.Name, req.Description)
	if err != nil {
		s.error(c, http.StatusInternalServerError, "Failed to create knowledge base")
		return
	}
	s.log.Info("knowledge base created: %s (%s)", kb.ID, kb.Name)
	c.JSON(http.StatusOK, kb)
}

func (s *Server) listKnowledgeBases(c *gin.Context) {
	kbs := s.kbs.List()
	c.JSON(http.StatusOK, gin.H{
		"knowledge_bases": kbs,
		"total_count":     len(kbs),
	})
}

func (s *Server) getKnowledgeBase(c *gin.Context) {
	kb, err := s.kbs.Get(c.Param("id"))
	if err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}
	c.JSON(http.StatusOK, kb)
}

func (s *Server) updateKnowledgeBase(c *gin.Context) {
	var req kbUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	kb, err := s.kbs.Update(c.Param("id"), registry.KnowledgeBaseUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}
	s.log.Info("knowledge base updated: %s", kb.ID)
	c.JSON(http.StatusOK, kb)
}

func (s *Server) deleteKnowledgeBase(c *gin.Context) {
	id := c.Param("id")
	if err := s.kbs.Delete(id); err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}
	s.log.Info("knowledge base deleted: %s", id)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Knowledge base %s deleted successfully", id)})
}

// knowledgeBaseStats reports document-derived statistics. Reading stats
// does not modify the stored record; counts are recomputed per request.
func (s *Server) knowledgeBaseStats(c *gin.Context) {
	kb, err := s.kbs.Get(c.Param("id"))
	if err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}

	c.JSON(http.StatusOK, kbStatsResponse{
		ID:                 kb.ID,
		Name:               kb.Name,
		TotalDocuments:     s.documents.CompletedCount(),
		TotalSizeMB:        workingDirSizeMB(s.cfg.WorkingDir),
		MostCommonEntities: []map[string]any{},
		RecentDocuments:    s.documents.RecentCompleted(5),
	})
}

func (s *Server) exportKnowledgeBase(c *gin.Context) {
	kb, err := s.kbs.Get(c.Param("id"))
	if err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}

	format := c.DefaultQuery("format", "json")
	s.log.Info("knowledge base exported: %s (format: %s)", kb.ID, format)
	c.JSON(http.StatusOK, gin.H{
		"knowledge_base_id": kb.ID,
		"export_format":     format,
		"export_date":       time.Now().UTC(),
		"entities":          []any{},
		"relationships":     []any{},
		"metadata":          kb,
	})
}

func (s *Server) importKnowledgeBase(c *gin.Context) {
	kb, err := s.kbs.Get(c.Param("id"))
	if err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.log.Info("data imported to knowledge base: %s", kb.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Data imported successfully to knowledge base %s", kb.ID),
	})
}

// visualizeKnowledgeBase serves the knowledge graph in a node/edge shape
// suitable for force-directed rendering.
func (s *Server) visualizeKnowledgeBase(c *gin.Context) {
	if _, err := s.kbs.Get(c.Param("id")); err != nil {
		s.error(c, http.StatusNotFound, "Knowledge base not found")
		return
	}
	if !s.cfg.EnableGraphVisualization {
		s.error(c, http.StatusNotFound, "Graph visualization is disabled")
		return
	}

	maxNodes, err := strconv.Atoi(c.DefaultQuery("max_nodes", "100"))
	if err != nil || maxNodes <= 0 {
		s.error(c, http.StatusBadRequest, "max_nodes must be a positive integer")
		return
	}
	if s.cfg.MaxGraphNodes > 0 && maxNodes > s.cfg.MaxGraphNodes {
		maxNodes = s.cfg.MaxGraphNodes
	}
	entityType := c.Query("entity_type")

	nodes := make([]gin.H, 0)
	edges := make([]gin.H, 0)
	if s.graph != nil {
		entities, relationships := s.graph.All()
		if entityType != "" {
			entities = s.graph.EntitiesByType(entityType)
		}

		included := make(map[string]bool)
		for _, ent := range entities {
			if len(nodes) >= maxNodes {
				break
			}
			included[ent.ID] = true
			nodes = append(nodes, gin.H{
				"id":    ent.ID,
				"label": ent.Name,
				"type":  ent.Type,
				"size":  10,
			})
		}
		for _, rel := range relationships {
			if included[rel.Source] && included[rel.Target] {
				edges = append(edges, gin.H{
					"from":   rel.Source,
					"to":     rel.Target,
					"label":  rel.Type,
					"weight": 1.0,
				})
			}
		}
	}

	filters := gin.H{}
	if entityType != "" {
		filters["entity_type"] = entityType
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"edges": edges,
		"metadata": gin.H{
			"total_nodes":     len(nodes),
			"total_edges":     len(edges),
			"layout":          "force-directed",
			"filters_applied": filters,
		},
	})
}

func workingDirSizeMB(dir string) float64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	mb := float64(total) / (1024 * 1024)
	return math.Round(mb*100) / 100
}
