package selection

import (
	"errors"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
)

var (
	ErrSelectionLimit = errors.New("selection: maximum number of assets selected")
	ErrVideoLimit     = errors.New("selection: video cannot be selected")
	ErrVideoTooLarge  = errors.New("selection: video exceeds the size limit")
)

// Policy limits what may be added to a Store. It is applied by callers before
// Add; the store itself never rejects an asset. Zero limits are unlimited.
type Policy struct {
	MaxCount      int   // Maximum selected assets
	MaxVideos     int   // Maximum selected videos; 1 also forbids mixing videos with images
	MaxVideoBytes int64 // Largest selectable video
}

// DefaultPolicy allows nine assets, any number of videos, and videos up to
// 200 MiB.
func DefaultPolicy() Policy {
	return Policy{
		MaxCount:      constants.DefaultMaxSelectCount,
		MaxVideos:     constants.Unlimited,
		MaxVideoBytes: constants.DefaultMaxVideoBytes,
	}
}

// CellState is how a grid cell presents its selection box.
type CellState int

const (
	Unselected CellState = iota
	Selected
	Disabled
)

func (c CellState) String() string {
	switch c {
	case Selected:
		return "selected"
	case Disabled:
		return "disabled"
	default:
		return "unselected"
	}
}

// Cell is the presentation of one asset's cell.
type Cell struct {
	State  CellState
	Number int // Selection number when State is Selected
}

// Masked reports whether the cell is drawn dimmed.
func (c Cell) Masked() bool {
	return c.State == Disabled
}

// Cell returns the presentation of asset given the current selection.
func (p Policy) Cell(s *Store, asset library.Asset) Cell {
	if n := s.Number(asset); n > 0 {
		return Cell{State: Selected, Number: n}
	}
	if p.videoBlocked(s, asset) {
		return Cell{State: Disabled}
	}
	return Cell{State: Unselected}
}

// Check reports why asset cannot be added to s, or nil when it can. An asset
// that is already selected always passes.
func (p Policy) Check(s *Store, asset library.Asset) error {
	if s.Contains(asset) {
		return nil
	}
	if p.MaxCount > 0 && s.Len() >= p.MaxCount {
		return ErrSelectionLimit
	}
	if p.videoBlocked(s, asset) {
		return ErrVideoLimit
	}
	if asset.IsVideo() && p.MaxVideoBytes > 0 && asset.ByteSize > p.MaxVideoBytes {
		return ErrVideoTooLarge
	}
	return nil
}

// videoBlocked applies the video count rules. With a limit of one, a
// non-empty selection disables every video, and a selected video disables
// everything else.
func (p Policy) videoBlocked(s *Store, asset library.Asset) bool {
	switch {
	case p.MaxVideos <= 0:
		return false
	case p.MaxVideos == 1:
		first, ok := s.First()
		return ok && (first.IsVideo() || asset.IsVideo())
	default:
		return asset.IsVideo() && s.VideoCount() >= p.MaxVideos
	}
}
