package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/vectorindex"
)

type addTextRequest struct {
	Label   string `json:"label" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type ingestPagesRequest struct {
	Pages []core.Page `json:"pages" binding:"required"`
}

type questionRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"topK"`
}

type matchResponse struct {
	Score    float32              `json:"score"`
	Content  string               `json:"content"`
	Metadata vectorindex.Metadata `json:"metadata"`
}

func (s *Server) handleListSources(c *gin.Context) {
	sources, err := s.svc.ListSources(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		s.abort(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

func (s *Server) handleAddText(c *gin.Context) {
	var req addTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	source, err := s.svc.AddTextSource(c.Request.Context(), c.Param("tenant"), req.Label, req.Content)
	if err != nil {
		extra := gin.H{}
		if source != nil {
			// a failed ingestion still leaves a FAILED source behind
			extra["source"] = source
		}
		s.abort(c, err, extra)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"source": source})
}

func (s *Server) handleIngestPages(c *gin.Context) {
	var req ingestPagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	res, err := s.svc.IngestPages(c.Request.Context(), c.Param("tenant"), req.Pages)
	if err != nil {
		extra := gin.H{}
		if res != nil && res.PagesResult != nil {
			extra["skipped"] = res.Skipped
			extra["failures"] = res.Failures
		}
		s.abort(c, err, extra)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleDeleteSource(c *gin.Context) {
	if err := s.svc.DeleteSource(c.Request.Context(), c.Param("tenant"), c.Param("id")); err != nil {
		s.abort(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRetrieve(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	chunks, err := s.svc.RetrieveContext(c.Request.Context(), c.Param("tenant"), req.Question)
	if err != nil {
		s.abort(c, err, nil)
		return
	}
	if chunks == nil {
		chunks = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	matches, err := s.svc.Search(c.Request.Context(), c.Param("tenant"), req.Question, req.TopK, nil)
	if err != nil {
		s.abort(c, err, nil)
		return
	}
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchResponse{Score: m.Score, Content: m.Content, Metadata: m.Metadata})
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}

func (s *Server) handlePurgeTenant(c *gin.Context) {
	n, err := s.svc.PurgeTenant(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		s.abort(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
