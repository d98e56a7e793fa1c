// Package server exposes the HTTP API: chat queries, document uploads
// and knowledge-base management on top of the registries and the
// knowledge adapter.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/knograph/knograph/internal/config"
	"github.com/knograph/knograph/internal/engine"
	"github.com/knograph/knograph/internal/logging"
	"github.com/knograph/knograph/internal/registry"
	"github.com/knograph/knograph/internal/service"
)

// GraphSource provides read access to the knowledge graph for the
// visualization endpoint.
type GraphSource interface {
	All() ([]engine.Entity, []engine.Relationship)
	EntitiesByType(entityType string) []engine.Entity
}

// Server wires the HTTP routes to the registries and the knowledge
// adapter.
type Server struct {
	cfg       *config.Config
	knowledge *service.Knowledge
	documents *registry.Documents
	kbs       *registry.KnowledgeBases
	graph     GraphSource
	log       logging.Logger
	router    *gin.Engine
}

// New builds the server and its route table. graph may be nil, in which
// case the visualization endpoint serves an empty graph.
func New(cfg *config.Config, knowledge *service.Knowledge, documents *registry.Documents,
	kbs *registry.KnowledgeBases, graph GraphSource, log logging.Logger) *Server {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		knowledge: knowledge,
		documents: documents,
		kbs:       kbs,
		graph:     graph,
		log:       log,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"*"},
		AllowCredentials: true,
	}))

	r.GET("/health", s.health)
	r.GET("/", s.root)

	chat := r.Group("/api/chat")
	{
		chat.POST("/query", s.chatQuery)
		chat.GET("/health", s.chatHealth)
	}

	// Declared but unimplemented; real-time chat is not part of the
	// current surface.
	r.GET("/ws/chat/:session_id", func(c *gin.Context) {
		s.error(c, http.StatusNotImplemented, "WebSocket chat is not implemented")
	})

	docs := r.Group("/api/documents")
	{
		docs.POST("/upload", s.uploadDocument)
		docs.GET("/", s.listDocuments)
		docs.GET("/:id", s.getDocument)
		docs.GET("/:id/status", s.documentStatus)
		docs.DELETE("/:id", s.deleteDocument)
	}

	kb := r.Group("/api/knowledge-bases")
	{
		kb.POST("/", s.createKnowledgeBase)
		kb.GET("/", s.listKnowledgeBases)
		kb.GET("/:id", s.getKnowledgeBase)
		kb.PUT("/:id", s.updateKnowledgeBase)
		kb.DELETE("/:id", s.deleteKnowledgeBase)
		kb.GET("/:id/stats", s.knowledgeBaseStats)
		kb.GET("/:id/export", s.exportKnowledgeBase)
		kb.POST("/:id/import", s.importKnowledgeBase)
		kb.GET("/:id/visualize", s.visualizeKnowledgeBase)
	}

	return r
}

// error writes the uniform error body used across the API.
func (s *Server) error(c *gin.Context, status int, message string) {
	s.log.Error("HTTP %d: %s", status, message)
	c.JSON(status, gin.H{
		"error":       message,
		"status_code": status,
		"path":        c.Request.URL.Path,
	})
}

// recovery converts panics into the uniform 500 body without leaking
// details to the client.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		s.log.Error("panic recovered: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":       "Internal server error",
			"status_code": http.StatusInternalServerError,
			"path":        c.Request.URL.Path,
		})
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"version":     s.cfg.Version,
		"service":     s.cfg.AppName,
		"environment": s.cfg.Environment,
	})
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to " + s.cfg.AppName,
		"health":  "/health",
		"version": s.cfg.Version,
	})
}
