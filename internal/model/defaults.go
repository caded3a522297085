package model

import "time"

// Shared defaults used by the server, player, and CLI binaries.
const (
	DefaultWidgetWidth  = 4
	DefaultWidgetHeight = 4

	// DefaultWidgetTimeRangeMinutes is the series lookback for widgets that
	// do not set one.
	DefaultWidgetTimeRangeMinutes = 60

	// DefaultItemDurationSeconds is applied when a playlist item is created
	// without an explicit display duration.
	DefaultItemDurationSeconds = 30
	// MinItemDurationSeconds is the lowest duration the API accepts.
	MinItemDurationSeconds = 5

	// DefaultDebounceWindow is how long layout writes are held back while a
	// dashboard is still being rearranged.
	DefaultDebounceWindow = 500 * time.Millisecond

	// DefaultShareTTL is the lifetime of a playlist share link.
	DefaultShareTTL = 7 * 24 * time.Hour
)
