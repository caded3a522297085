package model

import "time"

// Device represents a provisioned sensor device.
// It is the canonical type for storage, transport (socket RPC), and display.
// Devices are auto-provisioned the first time telemetry arrives for an
// unknown deviceId.
type Device struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Name       string    `json:"name"`
	Model      string    `json:"model,omitempty"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"` // zero value = never reported
	Tags       []Tag     `json:"tags,omitempty"`
}

// Tag is a named label that can be attached to any number of devices.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DeviceEvent is a discrete event reported by or about a device
// (connection drops, threshold breaches, firmware messages).
type DeviceEvent struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"deviceId"`
	Severity  string    `json:"severity"` // INFO/WARN/ERROR/CRITICAL
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// DimensionCount represents grouped counts by a single dimension value
// (for example device or variable).
type DimensionCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
