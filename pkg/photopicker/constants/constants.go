// Package constants defines shared constants, types, and configuration values
// used throughout the photopicker core.
package constants

import (
	"os"
	"time"
)

// Development is the environment variable value for development mode.
const Development = "DEV"

// Environment variables read by the picker.
const (
	LogLevelEnvVar = "PHOTOPICKER_LOG_LEVEL"
	ConfigEnvVar   = "PHOTOPICKER_CONFIG"
)

// IsDevMode returns true if running in development mode (ENVIRONMENT=DEV).
func IsDevMode() bool {
	return os.Getenv("ENVIRONMENT") == Development
}

// MediaKind is the kind of media an asset holds.
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindImage
	MediaKindVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindImage:
		return "image"
	case MediaKindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// PhotoDirection controls where the newest asset sits in the grid.
type PhotoDirection int

const (
	PhotoDirectionDown PhotoDirection = iota // Newest asset at the bottom of the grid
	PhotoDirectionUp                         // Newest asset at the top of the grid
)

// Selection defaults.
const (
	DefaultMaxSelectCount       = 9
	DefaultMaxVideoBytes  int64 = 200 * 1024 * 1024
	Unlimited                   = 0 // Disables a count limit
)

// Grid defaults.
const (
	DefaultItemsPerRow         = 3
	DefaultItemSpacing float64 = 3
)

// Interactive transition tuning.
const (
	DefaultTransitionDuration         = 500 * time.Millisecond
	DefaultBackgroundFadeDuration     = 400 * time.Millisecond
	DefaultCommitThreshold    float64 = 100 // Vertical drag in points that commits a pop
	DefaultFadeMargin         float64 = 100 // Subtracted from half the screen height when normalising drag
	MinimumDragScale          float64 = 0.5
	DefaultFrameInterval              = time.Second / 60
)

// Fetch tuning.
const (
	BatchUnitCount = 10 // Progress units contributed by each asset in a batch fetch
)

// Cache defaults.
const (
	DefaultCacheEntries       = 256
	DefaultCacheBytes   int64 = 256 * 1024 * 1024
)
