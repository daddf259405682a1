package photopicker

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/selection"
)

// Config is the picker configuration, normally read from a TOML file.
//
//	locale = "en"
//	network_allowed = true
//
//	[grid]
//	items_per_row = 4
//	photo_direction = "up"
//
//	[selection]
//	max_count = 9
//	max_videos = 1
//	max_video_mb = 200
//
//	[transition]
//	duration = "350ms"
type Config struct {
	Locale         string `toml:"locale"`
	NetworkAllowed bool   `toml:"network_allowed"` // Download cloud-only assets

	Grid       GridConfig       `toml:"grid"`
	Selection  SelectionConfig  `toml:"selection"`
	Cache      CacheConfig      `toml:"cache"`
	Decode     DecodeConfig     `toml:"decode"`
	Transition TransitionConfig `toml:"transition"`
}

type GridConfig struct {
	ItemsPerRow    int     `toml:"items_per_row"`
	Spacing        float64 `toml:"spacing"`         // Between cells, in points
	Edge           float64 `toml:"edge"`            // Padding around the grid, in points
	PhotoDirection string  `toml:"photo_direction"` // "down" puts the newest asset at the bottom, "up" at the top
}

type SelectionConfig struct {
	MaxCount      int   `toml:"max_count"`
	MaxVideos     int   `toml:"max_videos"`   // 0 for no video limit
	MaxVideoMB    int64 `toml:"max_video_mb"` // 0 for no size limit
	HideVideo     bool  `toml:"hide_video"`
	AllowOriginal bool  `toml:"allow_original"`
}

type CacheConfig struct {
	Entries int   `toml:"entries"`
	Bytes   int64 `toml:"bytes"`
}

type DecodeConfig struct {
	Workers int     `toml:"workers"` // 0 for GOMAXPROCS
	Scale   float64 `toml:"scale"`   // Pixels per point
}

type TransitionConfig struct {
	Duration           time.Duration `toml:"duration"`
	BackgroundDuration time.Duration `toml:"background_duration"`
	CommitThreshold    float64       `toml:"commit_threshold"`
	FadeMargin         float64       `toml:"fade_margin"`
	MinimumScale       float64       `toml:"minimum_scale"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Locale:         "en",
		NetworkAllowed: true,
		Grid: GridConfig{
			ItemsPerRow:    constants.DefaultItemsPerRow,
			Spacing:        constants.DefaultItemSpacing,
			Edge:           constants.DefaultItemSpacing,
			PhotoDirection: "down",
		},
		Selection: SelectionConfig{
			MaxCount:      constants.DefaultMaxSelectCount,
			MaxVideos:     constants.Unlimited,
			MaxVideoMB:    constants.DefaultMaxVideoBytes / (1024 * 1024),
			AllowOriginal: true,
		},
		Cache: CacheConfig{
			Entries: constants.DefaultCacheEntries,
			Bytes:   constants.DefaultCacheBytes,
		},
		Decode: DecodeConfig{
			Scale: 2,
		},
		Transition: TransitionConfig{
			Duration:           constants.DefaultTransitionDuration,
			BackgroundDuration: constants.DefaultBackgroundFadeDuration,
			CommitThreshold:    constants.DefaultCommitThreshold,
			FadeMargin:         constants.DefaultFadeMargin,
			MinimumScale:       constants.MinimumDragScale,
		},
	}
}

// LoadConfig reads path on top of DefaultConfig, so a file only needs the
// keys it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("photopicker: read config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		internal.GetInternalLogger().Warn("Unknown config keys", "path", path, "keys", keys)
	}

	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("photopicker: config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Selection.MaxCount < 1:
		return fmt.Errorf("selection.max_count must be at least 1, got %d", c.Selection.MaxCount)
	case c.Selection.MaxVideos < 0:
		return fmt.Errorf("selection.max_videos must not be negative, got %d", c.Selection.MaxVideos)
	case c.Grid.ItemsPerRow < 1:
		return fmt.Errorf("grid.items_per_row must be at least 1, got %d", c.Grid.ItemsPerRow)
	case c.Transition.MinimumScale <= 0 || c.Transition.MinimumScale > 1:
		return fmt.Errorf("transition.minimum_scale must be in (0, 1], got %v", c.Transition.MinimumScale)
	}

	if _, err := parseDirection(c.Grid.PhotoDirection); err != nil {
		return err
	}
	return nil
}

// Policy returns the selection rules the configuration describes.
func (c Config) Policy() selection.Policy {
	return selection.Policy{
		MaxCount:      c.Selection.MaxCount,
		MaxVideos:     c.Selection.MaxVideos,
		MaxVideoBytes: c.Selection.MaxVideoMB * 1024 * 1024,
	}
}

// Direction returns the grid photo direction. Invalid values read as down.
func (c Config) Direction() constants.PhotoDirection {
	d, _ := parseDirection(c.Grid.PhotoDirection)
	return d
}

// Padding returns the grid edge padding.
func (c Config) Padding() internal.Padding {
	return internal.UniformPadding(c.Grid.Edge)
}

// CellSide returns the side of a grid cell for a grid width in points.
func (c Config) CellSide(width float64) float64 {
	return internal.CellSide(width, c.Grid.ItemsPerRow, c.Grid.Spacing, c.Padding())
}

func parseDirection(s string) (constants.PhotoDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "down":
		return constants.PhotoDirectionDown, nil
	case "up":
		return constants.PhotoDirectionUp, nil
	default:
		return constants.PhotoDirectionDown, fmt.Errorf("grid.photo_direction must be \"up\" or \"down\", got %q", s)
	}
}
