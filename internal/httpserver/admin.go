package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeFleck/sensorvision-sub002/internal/duckdb"
)

func (s *Server) handleListTrash(c *gin.Context) {
	entries, err := s.deps.Store.ListTrash(c.Query("type"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleTrashStats(c *gin.Context) {
	stats, err := s.deps.Store.TrashStats()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRestoreTrash(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.RestoreTrash(id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePurgeTrash(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.PurgeTrash(id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handlePurgeExpiredTrash drops every entry past its expiry, the same sweep
// the retention cleaner runs on its schedule.
func (s *Server) handlePurgeExpiredTrash(c *gin.Context) {
	purged, err := s.deps.Store.DeleteExpiredTrash(time.Now().UTC())
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

func (s *Server) handleGetRetentionPolicy(c *gin.Context) {
	policy, err := s.deps.Store.RetentionPolicy()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) handleUpdateRetentionPolicy(c *gin.Context) {
	var req struct {
		TelemetryDays int `json:"telemetryDays"`
		EventDays     int `json:"eventDays"`
		TrashDays     int `json:"trashDays"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.TelemetryDays < 0 || req.EventDays < 0 || req.TrashDays < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention days cannot be negative"})
		return
	}
	policy, err := s.deps.Store.UpdateRetentionPolicy(duckdb.RetentionPolicy{
		TelemetryDays: req.TelemetryDays,
		EventDays:     req.EventDays,
		TrashDays:     req.TrashDays,
	})
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) handleResetRetentionPolicy(c *gin.Context) {
	policy, err := s.deps.Store.ResetRetentionPolicy()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) handleExecuteRetention(c *gin.Context) {
	if s.deps.Retention == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retention disabled"})
		return
	}
	execution, err := s.deps.Retention.RunNow()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, execution)
}

func (s *Server) handleListRetentionExecutions(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	executions, err := s.deps.Store.ListRetentionExecutions(limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, executions)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	claims := currentClaims(c)
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	notifications, err := s.deps.Store.NotificationsForUser(claims.UserID(), c.Query("unread") == "true", limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *Server) handleUnreadNotificationCount(c *gin.Context) {
	claims := currentClaims(c)
	count, err := s.deps.Store.UnreadNotificationCount(claims.UserID())
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	claims := currentClaims(c)
	var req struct {
		ID int64 `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := s.deps.Store.MarkNotificationRead(claims.UserID(), req.ID); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMarkAllNotificationsRead(c *gin.Context) {
	claims := currentClaims(c)
	marked, err := s.deps.Store.MarkAllNotificationsRead(claims.UserID())
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (s *Server) handleGetNotificationPrefs(c *gin.Context) {
	claims := currentClaims(c)
	prefs, err := s.deps.Store.NotificationPrefsForUser(claims.UserID())
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) handleUpdateNotificationPrefs(c *gin.Context) {
	claims := currentClaims(c)
	var req struct {
		DeviceOffline    *bool `json:"deviceOffline"`
		IssueUpdates     *bool `json:"issueUpdates"`
		RetentionReports *bool `json:"retentionReports"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	prefs, err := s.deps.Store.NotificationPrefsForUser(claims.UserID())
	if err != nil {
		storeError(c, err)
		return
	}
	if req.DeviceOffline != nil {
		prefs.DeviceOffline = *req.DeviceOffline
	}
	if req.IssueUpdates != nil {
		prefs.IssueUpdates = *req.IssueUpdates
	}
	if req.RetentionReports != nil {
		prefs.RetentionReports = *req.RetentionReports
	}
	updated, err := s.deps.Store.UpdateNotificationPrefs(prefs)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
