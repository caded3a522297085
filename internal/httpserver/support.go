package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

func (s *Server) handleListEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	events, err := s.deps.Store.RecentEvents(c.Query("deviceId"), c.Query("severity"), limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// handleEventPatterns exposes the live message clusters. Patterns reset
// with the process; events themselves stay in the store.
func (s *Server) handleEventPatterns(c *gin.Context) {
	if s.deps.Clusterer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event clustering disabled"})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	patterns := s.deps.Clusterer.TopPatterns(limit)
	_, total := s.deps.Clusterer.Stats()
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "totalMessages": total})
}

func (s *Server) handleEventSeverityCounts(c *gin.Context) {
	counts, err := s.deps.Store.EventSeverityCounts()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

type cannedRequest struct {
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
	Category string `json:"category"`
	Active   *bool  `json:"active"`
}

func (s *Server) handleListCannedResponses(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	responses, err := s.deps.Store.ListCannedResponses(activeOnly, c.Query("category"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses)
}

func (s *Server) handleCreateCannedResponse(c *gin.Context) {
	var req cannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}
	resp, err := s.deps.Store.CreateCannedResponse(req.Title, req.Body, req.Category)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleGetCannedResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.deps.Store.CannedResponseByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdateCannedResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	resp, err := s.deps.Store.UpdateCannedResponse(id, req.Title, req.Body, req.Category, active)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteCannedResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.DeleteCannedResponse(id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleUseCannedResponse bumps the snippet's use counter and returns the
// body so clients can paste it without a second round trip.
func (s *Server) handleUseCannedResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.deps.Store.UseCannedResponse(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateIssue(c *gin.Context) {
	var req struct {
		Title    string `json:"title" binding:"required"`
		Body     string `json:"body"`
		Severity string `json:"severity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	severity := req.Severity
	if severity == "" {
		severity = model.SeverityMedium
	}
	if !model.ValidIssueSeverity(severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity " + severity})
		return
	}
	reporter := ""
	if claims := currentClaims(c); claims != nil {
		reporter = claims.Username
	}
	issue, err := s.deps.Store.CreateIssue(req.Title, req.Body, severity, reporter)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (s *Server) handleListIssues(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !model.ValidIssueStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + status})
		return
	}
	issues, err := s.deps.Store.ListIssues(status, c.Query("severity"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (s *Server) handleGetIssue(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	issue, err := s.deps.Store.IssueByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	comments, err := s.deps.Store.CommentsForIssue(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue": issue, "comments": comments})
}

func (s *Server) handleUpdateIssueStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if !model.ValidIssueStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}
	issue, err := s.deps.Store.UpdateIssueStatus(id, req.Status)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (s *Server) handleAddIssueComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Body     string `json:"body"`
		CannedID int64  `json:"cannedId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Body == "" && req.CannedID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body or cannedId is required"})
		return
	}
	author := ""
	if claims := currentClaims(c); claims != nil {
		author = claims.Username
	}
	comment, err := s.deps.Store.AddIssueComment(id, author, req.Body, req.CannedID)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
