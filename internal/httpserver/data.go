package httpserver

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CodeFleck/sensorvision-sub002/internal/importer"
	"github.com/CodeFleck/sensorvision-sub002/internal/ingest"
)

// handleIngest accepts one telemetry or event object, the same shape the
// TCP and stdin feeds carry. Points go through the shared insert buffer,
// so a 202 means accepted, not yet queryable.
func (s *Server) handleIngest(c *gin.Context) {
	if s.deps.Points == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest disabled"})
		return
	}
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}
	payload, err := ingest.ParseObject(raw, "http", s.parser)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.Event != nil {
		if err := s.deps.Store.InsertDeviceEvent(payload.Event); err != nil {
			storeError(c, err)
			return
		}
		if s.deps.Clusterer != nil {
			s.deps.Clusterer.Add(payload.Event.Message)
		}
		c.JSON(http.StatusAccepted, gin.H{"events": 1})
		return
	}
	for _, p := range payload.Points {
		s.deps.Points.Add(p)
	}
	c.JSON(http.StatusAccepted, gin.H{"points": len(payload.Points)})
}

func (s *Server) handleBulkIngest(c *gin.Context) {
	if s.deps.Importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest disabled"})
		return
	}
	summary, err := s.deps.Importer.ImportJSON(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleImport routes on Content-Type: text/csv goes through the CSV
// importer, everything else is treated as a JSON array.
func (s *Server) handleImport(c *gin.Context) {
	if s.deps.Importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest disabled"})
		return
	}
	contentType := c.GetHeader("Content-Type")
	var (
		summary *importer.Summary
		err     error
	)
	if strings.HasPrefix(contentType, "text/csv") {
		summary, err = s.deps.Importer.ImportCSV(c.Request.Body)
	} else {
		summary, err = s.deps.Importer.ImportJSON(c.Request.Body)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if summary.Failed > 0 {
		log.Printf("http: import finished with %d failed rows", summary.Failed)
	}
	c.JSON(http.StatusOK, summary)
}
