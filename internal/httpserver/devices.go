package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListDevices(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	devices, err := s.deps.Store.ListDevices(limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (s *Server) handleGetDevice(c *gin.Context) {
	device, err := s.deps.Store.DeviceByID(c.Param("deviceId"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) handleUpdateDevice(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Model    string `json:"model"`
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	device, err := s.deps.Store.UpdateDevice(c.Param("deviceId"), req.Name, req.Model, req.Location)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) handleDeleteDevice(c *gin.Context) {
	if err := s.deps.Store.TrashDevice(c.Param("deviceId"), s.trashTTL()); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeviceVariables(c *gin.Context) {
	stats, err := s.deps.Store.VariablesForDevice(c.Param("deviceId"))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleDeviceTelemetry serves the chart data behind dashboard widgets.
// Without an aggregation it returns raw points (newest-first limited,
// ascending order); with one it returns minute buckets.
func (s *Server) handleDeviceTelemetry(c *gin.Context) {
	deviceID := c.Param("deviceId")
	variable := c.Query("variable")
	if variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variable is required"})
		return
	}

	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		t, ok := s.parser.ParseTimestamp(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, ok := s.parser.ParseTimestamp(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		to = t
	}

	if agg := c.Query("aggregation"); agg != "" {
		points, err := s.deps.Store.BucketedSeries(deviceID, variable, agg, from, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, points)
		return
	}

	limit := 1000
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	points, err := s.deps.Store.SeriesForDevice(deviceID, variable, from, to, limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) handleDeviceLatest(c *gin.Context) {
	variable := c.Query("variable")
	if variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variable is required"})
		return
	}
	value, ts, err := s.deps.Store.LatestValue(c.Param("deviceId"), variable)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variable": variable, "value": value, "timestamp": ts})
}

func (s *Server) handleAttachTag(c *gin.Context) {
	tagID, ok := pathID(c, "tagId")
	if !ok {
		return
	}
	if err := s.deps.Store.AttachTag(c.Param("deviceId"), tagID); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDetachTag(c *gin.Context) {
	tagID, ok := pathID(c, "tagId")
	if !ok {
		return
	}
	if err := s.deps.Store.DetachTag(c.Param("deviceId"), tagID); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type tagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (s *Server) handleListTags(c *gin.Context) {
	tags, err := s.deps.Store.ListTags()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) handleCreateTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	tag, err := s.deps.Store.CreateTag(req.Name, req.Color)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	tag, err := s.deps.Store.UpdateTag(id, req.Name, req.Color)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.DeleteTag(id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDevicesByTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	devices, err := s.deps.Store.ListDevicesByTag(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}
