package model

import (
	"encoding/json"
	"time"
)

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an API account. PasswordHash is bcrypt and never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Entity types that can land in the trash.
const (
	EntityDashboard = "dashboard"
	EntityPlaylist  = "playlist"
	EntityDevice    = "device"
)

// TrashEntry is a soft-deleted entity held for restore until it expires.
// Snapshot is the full JSON serialization captured at delete time. A nil
// ExpiresAt means the entry never expires on its own.
type TrashEntry struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   int64           `json:"entityId"`
	Label      string          `json:"label"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	DeletedAt  time.Time       `json:"deletedAt"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
}

// RetentionPolicy controls how long telemetry, events, and trash are kept.
// Zero for a field disables expiry of that class of data.
type RetentionPolicy struct {
	TelemetryDays int       `json:"telemetryDays"`
	EventDays     int       `json:"eventDays"`
	TrashDays     int       `json:"trashDays"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DefaultRetentionPolicy returns the policy applied when none is stored.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{TelemetryDays: 90, EventDays: 30, TrashDays: 30}
}

// RetentionExecution records one retention run and what it removed.
type RetentionExecution struct {
	ID               int64     `json:"id"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	TelemetryDeleted int64     `json:"telemetryDeleted"`
	EventsDeleted    int64     `json:"eventsDeleted"`
	TrashDeleted     int64     `json:"trashDeleted"`
	Status           string    `json:"status"` // "completed" or "failed"
	Detail           string    `json:"detail,omitempty"`
}

// Notification kinds, gated by a preference toggle where one exists.
const (
	NotifyDeviceOffline   = "device-offline"
	NotifyIssueUpdate     = "issue-update"
	NotifyRetentionReport = "retention-report"
	NotifyLayoutSave      = "layout-save"
)

// Notification is one in-app message for a user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NotificationPrefs selects which notification kinds a user receives.
type NotificationPrefs struct {
	UserID           int64 `json:"userId"`
	DeviceOffline    bool  `json:"deviceOffline"`
	IssueUpdates     bool  `json:"issueUpdates"`
	RetentionReports bool  `json:"retentionReports"`
}
