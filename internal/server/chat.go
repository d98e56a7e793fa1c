package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/knograph/knograph/internal/engine"
)

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type chatResponse struct {
	Response string `json:"response"`
	Mode     string `json:"mode"`
	Success  bool   `json:"success"`
}

// chatQuery answers a question over the knowledge base. Engine-side
// failures never produce an error status here, only success=false.
func (s *Server) chatQuery(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.error(c, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if req.Mode == "" {
		req.Mode = string(engine.ModeHybrid)
	}

	mode, err := engine.ParseMode(req.Mode)
	if err != nil {
		s.error(c, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("processing chat query with mode %s", mode)
	result := s.knowledge.Query(c.Request.Context(), mode, req.Message)

	c.JSON(http.StatusOK, chatResponse{
		Response: result.Response,
		Mode:     string(mode),
		Success:  result.OK,
	})
}

// chatHealth reports the chat surface's view of the knowledge adapter.
func (s *Server) chatHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "chat",
		"knowledge_stats": s.knowledge.Stats(),
	})
}
