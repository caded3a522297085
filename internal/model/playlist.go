package model

import "time"

// Transition effects between playlist items.
const (
	TransitionFade  = "fade"
	TransitionSlide = "slide"
	TransitionNone  = "none"
)

// ValidTransition reports whether t is a supported transition effect.
func ValidTransition(t string) bool {
	return t == TransitionFade || t == TransitionSlide || t == TransitionNone
}

// Playlist is an ordered rotation of dashboards for unattended display.
// LoopEnabled defaults to true; a non-looping playlist parks on its last
// dashboard when the rotation ends.
type Playlist struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	LoopEnabled      bool           `json:"loopEnabled"`
	TransitionEffect string         `json:"transitionEffect"`
	ShareToken       string         `json:"shareToken,omitempty"`
	ShareExpiresAt   *time.Time     `json:"shareExpiresAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	Items            []PlaylistItem `json:"items,omitempty"`
}

// PlaylistItem points at one dashboard within a playlist. Positions are kept
// continuous (0..n-1); removing an item shifts the items after it down.
type PlaylistItem struct {
	ID              int64  `json:"id"`
	PlaylistID      int64  `json:"playlistId"`
	DashboardID     int64  `json:"dashboardId"`
	Position        int    `json:"position"`
	DurationSeconds int    `json:"durationSeconds"`
	DashboardName   string `json:"dashboardName,omitempty"`
}
