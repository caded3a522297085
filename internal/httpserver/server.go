// Package httpserver exposes the REST API: auth, dashboards and their
// widget grids, playlists and share links, devices and telemetry
// queries, bulk data intake, and the admin surface (trash, retention,
// notifications, issues).
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CodeFleck/sensorvision-sub002/internal/auth"
	"github.com/CodeFleck/sensorvision-sub002/internal/duckdb"
	"github.com/CodeFleck/sensorvision-sub002/internal/events"
	"github.com/CodeFleck/sensorvision-sub002/internal/importer"
	"github.com/CodeFleck/sensorvision-sub002/internal/layout"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/timestamp"
)

// PointSink receives telemetry accepted by the data endpoints.
type PointSink interface {
	Add(point *model.TelemetryPoint)
}

// Deps carries everything the API serves from. Store and Tokens are
// required; the rest degrade to 503s on the routes that need them.
type Deps struct {
	Store     *duckdb.Store
	Tokens    *auth.TokenManager
	Points    PointSink
	Importer  *importer.Importer
	Debouncer *layout.Debouncer
	Clusterer *events.Clusterer
	Retention *duckdb.RetentionCleaner
}

// Server provides the REST API over the store.
type Server struct {
	addr      string
	deps      Deps
	parser    *timestamp.Parser
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. Default addr is "0.0.0.0:8080".
func NewServer(addr string, deps Deps) *Server {
	if addr == "" {
		addr = "0.0.0.0:8080"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		deps:   deps,
		parser: timestamp.NewParser(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound listen address. With a ":0" port it is only
// meaningful after Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLog())
	r.Use(observeRequests())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/api/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/login", s.handleLogin)

		// Kiosk players follow share links without an account. Everything a
		// shared playlist displays is readable through its token.
		v1.GET("/shared/playlists/:token", s.handleSharedPlaylist)
		v1.GET("/shared/playlists/:token/dashboards/:id", s.handleSharedDashboard)
		v1.GET("/shared/playlists/:token/devices/:deviceId/telemetry", s.handleSharedTelemetry)
		v1.GET("/shared/playlists/:token/devices/:deviceId/latest", s.handleSharedLatest)

		protected := v1.Group("/")
		protected.Use(requireAuth(s.deps.Tokens))
		{
			dashboards := protected.Group("/dashboards")
			{
				dashboards.GET("", s.handleListDashboards)
				dashboards.POST("", s.handleCreateDashboard)
				dashboards.GET("/:id", s.handleGetDashboard)
				dashboards.PUT("/:id", s.handleUpdateDashboard)
				dashboards.DELETE("/:id", s.handleDeleteDashboard)
				dashboards.PUT("/:id/layout", s.handleLayoutSnapshot)
				dashboards.POST("/:id/widgets", s.handleCreateWidget)
				dashboards.PUT("/:id/widgets/:widgetId", s.handleUpdateWidget)
				dashboards.DELETE("/:id/widgets/:widgetId", s.handleDeleteWidget)
				dashboards.GET("/:id/template", s.handleExportTemplate)
			}
			protected.POST("/templates/apply", s.handleApplyTemplate)

			playlists := protected.Group("/playlists")
			{
				playlists.GET("", s.handleListPlaylists)
				playlists.POST("", s.handleCreatePlaylist)
				playlists.GET("/:id", s.handleGetPlaylist)
				playlists.PUT("/:id", s.handleUpdatePlaylist)
				playlists.DELETE("/:id", s.handleDeletePlaylist)
				playlists.POST("/:id/items", s.handleAddPlaylistItem)
				playlists.PUT("/:id/items/:itemId", s.handleUpdatePlaylistItem)
				playlists.DELETE("/:id/items/:itemId", s.handleRemovePlaylistItem)
				playlists.PUT("/:id/reorder", s.handleReorderPlaylist)
				playlists.POST("/:id/share", s.handleSharePlaylist)
				playlists.DELETE("/:id/share", s.handleRevokeShare)
			}

			devices := protected.Group("/devices")
			{
				devices.GET("", s.handleListDevices)
				devices.GET("/:deviceId", s.handleGetDevice)
				devices.PUT("/:deviceId", s.handleUpdateDevice)
				devices.DELETE("/:deviceId", s.handleDeleteDevice)
				devices.GET("/:deviceId/variables", s.handleDeviceVariables)
				devices.GET("/:deviceId/telemetry", s.handleDeviceTelemetry)
				devices.GET("/:deviceId/latest", s.handleDeviceLatest)
				devices.POST("/:deviceId/tags/:tagId", s.handleAttachTag)
				devices.DELETE("/:deviceId/tags/:tagId", s.handleDetachTag)
			}

			tags := protected.Group("/tags")
			{
				tags.GET("", s.handleListTags)
				tags.POST("", s.handleCreateTag)
				tags.PUT("/:id", s.handleUpdateTag)
				tags.DELETE("/:id", s.handleDeleteTag)
				tags.GET("/:id/devices", s.handleDevicesByTag)
			}

			data := protected.Group("/data")
			{
				data.POST("/ingest", s.handleIngest)
				data.POST("/bulk", s.handleBulkIngest)
				data.POST("/import", s.handleImport)
			}

			eventsGroup := protected.Group("/events")
			{
				eventsGroup.GET("", s.handleListEvents)
				eventsGroup.GET("/patterns", s.handleEventPatterns)
				eventsGroup.GET("/severity-counts", s.handleEventSeverityCounts)
			}

			canned := protected.Group("/canned-responses")
			{
				canned.GET("", s.handleListCannedResponses)
				canned.POST("", s.handleCreateCannedResponse)
				canned.GET("/:id", s.handleGetCannedResponse)
				canned.PUT("/:id", s.handleUpdateCannedResponse)
				canned.DELETE("/:id", s.handleDeleteCannedResponse)
				canned.POST("/:id/use", s.handleUseCannedResponse)
			}

			issues := protected.Group("/issues")
			{
				issues.POST("", s.handleCreateIssue)
				issues.GET("", s.handleListIssues)
				issues.GET("/:id", s.handleGetIssue)
				issues.PUT("/:id/status", s.handleUpdateIssueStatus)
				issues.POST("/:id/comments", s.handleAddIssueComment)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", s.handleListNotifications)
				notifications.GET("/unread-count", s.handleUnreadNotificationCount)
				notifications.PUT("/read", s.handleMarkNotificationRead)
				notifications.PUT("/read-all", s.handleMarkAllNotificationsRead)
				notifications.GET("/prefs", s.handleGetNotificationPrefs)
				notifications.PUT("/prefs", s.handleUpdateNotificationPrefs)
			}

			retention := protected.Group("/retention-policy", requireAdmin())
			{
				retention.GET("", s.handleGetRetentionPolicy)
				retention.PUT("", s.handleUpdateRetentionPolicy)
				retention.DELETE("", s.handleResetRetentionPolicy)
				retention.POST("/execute", s.handleExecuteRetention)
				retention.GET("/executions", s.handleListRetentionExecutions)
			}

			admin := protected.Group("/admin", requireAdmin())
			{
				admin.GET("/trash", s.handleListTrash)
				admin.GET("/trash-stats", s.handleTrashStats)
				admin.POST("/trash/:id/restore", s.handleRestoreTrash)
				admin.DELETE("/trash/:id", s.handlePurgeTrash)
				admin.POST("/trash-purge", s.handlePurgeExpiredTrash)
				admin.POST("/users", s.handleCreateUser)
			}
		}
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	devices, err := s.deps.Store.DeviceCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}
	telemetry, err := s.deps.Store.TelemetryCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"devices":   devices,
		"telemetry": telemetry,
	})
}
