package photopicker

import (
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/selection"
)

// ToggleAction represents what a tap on a grid cell did to the selection.
type ToggleAction int

const (
	ToggleActionNone     ToggleAction = iota // Nothing changed
	ToggleActionAdded                        // Asset appended to the selection
	ToggleActionRemoved                      // Asset removed, later assets renumbered
	ToggleActionRejected                     // A selection rule refused the asset
)

func (a ToggleAction) String() string {
	switch a {
	case ToggleActionAdded:
		return "added"
	case ToggleActionRemoved:
		return "removed"
	case ToggleActionRejected:
		return "rejected"
	default:
		return "none"
	}
}

// CellInfo is everything the host needs to draw one grid cell.
type CellInfo struct {
	Asset    library.Asset
	State    selection.CellState
	Number   int    // 1-based selection number, 0 when unselected
	Badge    string // Icon glyph from constants, constants.BadgeNone for none
	Duration string // Video length as m:ss or h:mm:ss, empty for photos
	Masked   bool   // Draw the disabled overlay
}

// Result is what the picker hands back when the user sends.
type Result struct {
	Assets    []library.Asset // Selection order
	Original  bool            // Send originals rather than compressed copies
	MuteVideo bool
}

// HasVideo reports whether any selected asset is a video.
func (r Result) HasVideo() bool {
	for _, a := range r.Assets {
		if a.Kind == constants.MediaKindVideo {
			return true
		}
	}
	return false
}
