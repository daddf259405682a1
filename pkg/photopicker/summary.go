package photopicker

import (
	"fmt"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
)

// Summary describes the selection bar under the grid.
type Summary struct {
	Count      int
	Videos     int
	SendTitle  string // "Send" or "Send (N)"
	CanPreview bool
	CanSend    bool
}

func summarize(loc *internal.Localizer, assets []library.Asset) Summary {
	s := Summary{Count: len(assets)}
	for _, a := range assets {
		if a.IsVideo() {
			s.Videos++
		}
	}

	s.CanPreview = s.Count > 0
	s.CanSend = s.Count > 0
	if s.Count > 0 {
		s.SendTitle = loc.Text("SendButtonCount", -1, map[string]any{"Count": s.Count})
	} else {
		s.SendTitle = loc.Text("SendButton", -1, nil)
	}
	return s
}

// footer counts what the grid shows. Videos are left out of the text when
// they are hidden from the grid.
func footer(loc *internal.Localizer, assets []library.Asset, hideVideo bool) string {
	photos, videos := 0, 0
	for _, a := range assets {
		if a.IsVideo() {
			videos++
		} else {
			photos++
		}
	}

	if hideVideo || videos == 0 {
		return loc.Text("FooterPhotos", photos, map[string]any{"Photos": photos})
	}
	return loc.Text("FooterPhotosVideos", -1, map[string]any{"Photos": photos, "Videos": videos})
}

// FormatDuration renders a video length for the cell badge: m:ss below an
// hour, h:mm:ss from then on. Fractions of a second round to nearest.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)

	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// CellIndex maps the position of an asset in a newest-first list to its grid
// cell. The mapping is its own inverse.
func CellIndex(direction constants.PhotoDirection, index, total int) int {
	if index < 0 || index >= total {
		return -1
	}
	if direction == constants.PhotoDirectionDown {
		return total - 1 - index
	}
	return index
}
