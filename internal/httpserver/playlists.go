package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

type playlistRequest struct {
	Name             string `json:"name" binding:"required"`
	Description      string `json:"description"`
	LoopEnabled      *bool  `json:"loopEnabled"`
	TransitionEffect string `json:"transitionEffect"`
}

func (s *Server) handleListPlaylists(c *gin.Context) {
	playlists, err := s.deps.Store.ListPlaylists()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlists)
}

func (s *Server) handleCreatePlaylist(c *gin.Context) {
	var req playlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	loop := true
	if req.LoopEnabled != nil {
		loop = *req.LoopEnabled
	}
	transition := req.TransitionEffect
	if transition == "" {
		transition = model.TransitionFade
	}
	if !model.ValidTransition(transition) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown transition " + transition})
		return
	}
	playlist, err := s.deps.Store.CreatePlaylist(req.Name, req.Description, loop, transition)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, playlist)
}

func (s *Server) handleGetPlaylist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	playlist, err := s.deps.Store.PlaylistByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	playlistFetches.WithLabelValues("api").Inc()
	c.JSON(http.StatusOK, playlist)
}

func (s *Server) handleUpdatePlaylist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req playlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	current, err := s.deps.Store.PlaylistByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	loop := current.LoopEnabled
	if req.LoopEnabled != nil {
		loop = *req.LoopEnabled
	}
	transition := req.TransitionEffect
	if transition == "" {
		transition = current.TransitionEffect
	}
	if !model.ValidTransition(transition) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown transition " + transition})
		return
	}
	playlist, err := s.deps.Store.UpdatePlaylist(id, req.Name, req.Description, loop, transition)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

func (s *Server) handleDeletePlaylist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.TrashPlaylist(id, s.trashTTL()); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAddPlaylistItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		DashboardID     int64 `json:"dashboardId" binding:"required"`
		DurationSeconds int   `json:"durationSeconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dashboardId is required"})
		return
	}
	duration := req.DurationSeconds
	if duration == 0 {
		duration = model.DefaultItemDurationSeconds
	}
	if duration < model.MinItemDurationSeconds {
		c.JSON(http.StatusBadRequest, gin.H{"error": "durationSeconds must be at least 5"})
		return
	}
	item, err := s.deps.Store.AddPlaylistItem(id, req.DashboardID, duration)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) handleUpdatePlaylistItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	var req struct {
		DurationSeconds int `json:"durationSeconds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "durationSeconds is required"})
		return
	}
	if req.DurationSeconds < model.MinItemDurationSeconds {
		c.JSON(http.StatusBadRequest, gin.H{"error": "durationSeconds must be at least 5"})
		return
	}
	item, err := s.deps.Store.UpdatePlaylistItem(id, itemID, req.DurationSeconds)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleRemovePlaylistItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	if err := s.deps.Store.RemovePlaylistItem(id, itemID); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReorderPlaylist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ItemIDs []int64 `json:"itemIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemIds is required"})
		return
	}
	if err := s.deps.Store.ReorderPlaylistItems(id, req.ItemIDs); err != nil {
		storeError(c, err)
		return
	}
	playlist, err := s.deps.Store.PlaylistByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

func (s *Server) handleSharePlaylist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		TTLHours int `json:"ttlHours"`
	}
	// Body is optional; default share lifetime applies.
	_ = c.ShouldBindJSON(&req)

	ttl := model.DefaultShareTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}
	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(ttl)
	if err := s.deps.Store.SharePlaylist(id, token, expiresAt); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "expiresAt": expiresAt})
}

func (s *Server) handleRevokeShare(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.RevokeShare(id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSharedPlaylist resolves a share token without authentication so
// kiosk players can run unattended.
func (s *Server) handleSharedPlaylist(c *gin.Context) {
	token := c.Param("token")
	playlist, err := s.deps.Store.PlaylistByShareToken(token)
	if err != nil {
		storeError(c, err)
		return
	}
	playlistFetches.WithLabelValues("shared").Inc()
	c.JSON(http.StatusOK, playlist)
}

// sharedPlaylist resolves the share token on a share-scoped route, writing
// the error response when the share is unknown or expired.
func (s *Server) sharedPlaylist(c *gin.Context) (*model.Playlist, bool) {
	playlist, err := s.deps.Store.PlaylistByShareToken(c.Param("token"))
	if err != nil {
		storeError(c, err)
		return nil, false
	}
	return playlist, true
}

// handleSharedDashboard serves a dashboard through a share link. Only
// dashboards the shared playlist actually rotates are reachable.
func (s *Server) handleSharedDashboard(c *gin.Context) {
	playlist, ok := s.sharedPlaylist(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	member := false
	for _, item := range playlist.Items {
		if item.DashboardID == id {
			member = true
			break
		}
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	dashboard, err := s.deps.Store.DashboardByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// handleSharedTelemetry and handleSharedLatest reuse the device handlers
// once the share resolves. A valid share reads any device its dashboards
// reference; widgets are not re-checked per request.
func (s *Server) handleSharedTelemetry(c *gin.Context) {
	if _, ok := s.sharedPlaylist(c); !ok {
		return
	}
	s.handleDeviceTelemetry(c)
}

func (s *Server) handleSharedLatest(c *gin.Context) {
	if _, ok := s.sharedPlaylist(c); !ok {
		return
	}
	s.handleDeviceLatest(c)
}
