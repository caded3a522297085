package duckdb

import "github.com/CodeFleck/sensorvision-sub002/internal/model"

// Type aliases re-export model types so duckdb.Store method signatures and
// their callers read naturally without importing both packages.
type (
	TelemetryPoint     = model.TelemetryPoint
	SeriesPoint        = model.SeriesPoint
	VariableStat       = model.VariableStat
	DimensionCount     = model.DimensionCount
	Device             = model.Device
	Tag                = model.Tag
	DeviceEvent        = model.DeviceEvent
	Dashboard          = model.Dashboard
	Widget             = model.Widget
	WidgetLayout       = model.WidgetLayout
	WidgetUpdate       = model.WidgetUpdate
	Playlist           = model.Playlist
	PlaylistItem       = model.PlaylistItem
	CannedResponse     = model.CannedResponse
	Issue              = model.Issue
	IssueComment       = model.IssueComment
	User               = model.User
	TrashEntry         = model.TrashEntry
	RetentionPolicy    = model.RetentionPolicy
	RetentionExecution = model.RetentionExecution
	Notification       = model.Notification
	NotificationPrefs  = model.NotificationPrefs
)

// Trash entity types, re-exported alongside the entries they classify.
const (
	EntityDashboard = model.EntityDashboard
	EntityPlaylist  = model.EntityPlaylist
	EntityDevice    = model.EntityDevice
)
