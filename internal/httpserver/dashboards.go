package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

type dashboardRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) handleListDashboards(c *gin.Context) {
	dashboards, err := s.deps.Store.ListDashboards()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboards)
}

func (s *Server) handleCreateDashboard(c *gin.Context) {
	var req dashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	dashboard, err := s.deps.Store.CreateDashboard(req.Name, req.Description)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dashboard)
}

func (s *Server) handleGetDashboard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	dashboard, err := s.deps.Store.DashboardByID(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) handleUpdateDashboard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	dashboard, err := s.deps.Store.UpdateDashboard(id, req.Name, req.Description)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) handleDeleteDashboard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Store.TrashDashboard(id, s.trashTTL()); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleLayoutSnapshot accepts the full widget grid after a drag or
// resize. The write is handed to the debouncer, so the response only
// acknowledges receipt.
func (s *Server) handleLayoutSnapshot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var snapshot []model.WidgetLayout
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be an array of widget placements"})
		return
	}
	if s.deps.Debouncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "layout updates disabled"})
		return
	}
	if _, err := s.deps.Store.DashboardByID(id); err != nil {
		storeError(c, err)
		return
	}

	s.deps.Debouncer.Observe(id, snapshot)
	c.JSON(http.StatusAccepted, gin.H{"queued": len(snapshot)})
}

func (s *Server) handleCreateWidget(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var w model.Widget
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid widget body"})
		return
	}
	if !model.ValidWidgetType(w.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown widget type " + w.Type})
		return
	}
	if w.Aggregation != "" && !model.ValidAggregation(w.Aggregation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown aggregation " + w.Aggregation})
		return
	}
	widget, err := s.deps.Store.CreateWidget(id, w)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, widget)
}

func (s *Server) handleUpdateWidget(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	widgetID, ok := pathID(c, "widgetId")
	if !ok {
		return
	}
	var u model.WidgetUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid widget update body"})
		return
	}
	if u.Type != nil && !model.ValidWidgetType(*u.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown widget type " + *u.Type})
		return
	}
	widget, err := s.deps.Store.ApplyWidgetUpdate(id, widgetID, u)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, widget)
}

func (s *Server) handleDeleteWidget(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	widgetID, ok := pathID(c, "widgetId")
	if !ok {
		return
	}
	if err := s.deps.Store.DeleteWidget(id, widgetID); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	dashboard, err := s.deps.Store.DashboardByID(id)
	if err != nil {
		storeError(c, err)
		return
	}

	template := model.DashboardTemplate{
		Name:        dashboard.Name,
		Description: dashboard.Description,
	}
	for _, w := range dashboard.Widgets {
		template.Widgets = append(template.Widgets, model.WidgetTemplate{
			Type:             w.Type,
			Title:            w.Title,
			DeviceID:         w.DeviceID,
			Variable:         w.Variable,
			Aggregation:      w.Aggregation,
			TimeRangeMinutes: w.TimeRangeMinutes,
			X:                w.PositionX,
			Y:                w.PositionY,
			Width:            w.Width,
			Height:           w.Height,
		})
	}

	out, err := yaml.Marshal(template)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode template"})
		return
	}
	c.Data(http.StatusOK, "application/x-yaml", out)
}

func (s *Server) handleApplyTemplate(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var template model.DashboardTemplate
	if err := yaml.Unmarshal(body, &template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template yaml"})
		return
	}
	if template.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template needs a name"})
		return
	}
	for _, w := range template.Widgets {
		if !model.ValidWidgetType(w.Type) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown widget type " + w.Type})
			return
		}
	}

	dashboard, err := s.deps.Store.CreateDashboardFromTemplate(template)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dashboard)
}
