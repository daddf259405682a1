// Package selection holds the ordered set of assets the user has picked.
//
// A Store has no internal locking. Mutate and observe it from a single
// logical thread, normally the host's UI executor.
package selection

import (
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
)

// EventKind tags a selection change.
type EventKind int

const (
	Added EventKind = iota
	Removed
)

func (k EventKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "added"
}

// Event describes one change to the selection.
type Event struct {
	Kind  EventKind
	Asset library.Asset
}

// Observer is notified synchronously after every change. Selection numbers
// are positional, so a removal renumbers every asset after the removed one;
// observers must refresh all selected cells on Removed, not only the removed
// asset's own cell.
type Observer func(Event)

// Store is the ordered selection.
type Store struct {
	assets   []library.Asset
	observer Observer

	original  bool
	muteVideo bool
}

// NewStore creates a store pre-populated with assets, in order. Duplicates
// are dropped and no events are emitted.
func NewStore(assets ...library.Asset) *Store {
	s := &Store{muteVideo: true}
	for _, a := range assets {
		if !s.Contains(a) {
			s.assets = append(s.assets, a)
		}
	}
	return s
}

// SetObserver registers the observer, replacing any previous one. Pass nil
// to stop observing.
func (s *Store) SetObserver(o Observer) {
	s.observer = o
}

// Add appends asset. It returns false, without notifying, when the asset is
// already selected.
func (s *Store) Add(asset library.Asset) bool {
	if s.Contains(asset) {
		return false
	}
	s.assets = append(s.assets, asset)
	s.notify(Event{Kind: Added, Asset: asset})
	return true
}

// Remove drops asset by identifier. It returns false, without notifying,
// when the asset is not selected.
func (s *Store) Remove(asset library.Asset) bool {
	i := s.indexOf(asset.ID)
	if i < 0 {
		return false
	}
	removed := s.assets[i]
	s.assets = append(s.assets[:i], s.assets[i+1:]...)
	s.notify(Event{Kind: Removed, Asset: removed})
	return true
}

// Toggle removes a selected asset or adds an unselected one, and reports
// whether the asset is selected afterwards.
func (s *Store) Toggle(asset library.Asset) bool {
	if s.Remove(asset) {
		return false
	}
	return s.Add(asset)
}

// Number returns the 1-based selection number of asset, or 0 when it is not
// selected.
func (s *Store) Number(asset library.Asset) int {
	return s.indexOf(asset.ID) + 1
}

func (s *Store) Contains(asset library.Asset) bool {
	return s.indexOf(asset.ID) >= 0
}

// Assets returns a copy of the selection in order.
func (s *Store) Assets() []library.Asset {
	return append([]library.Asset(nil), s.assets...)
}

func (s *Store) Len() int {
	return len(s.assets)
}

// First returns the earliest selected asset.
func (s *Store) First() (library.Asset, bool) {
	if len(s.assets) == 0 {
		return library.Asset{}, false
	}
	return s.assets[0], true
}

// VideoCount returns how many selected assets are videos.
func (s *Store) VideoCount() int {
	n := 0
	for _, a := range s.assets {
		if a.IsVideo() {
			n++
		}
	}
	return n
}

// SetOriginal records whether the host should export full-size originals.
func (s *Store) SetOriginal(original bool) {
	s.original = original
}

func (s *Store) IsOriginal() bool {
	return s.original
}

// SetMuteVideo records whether previews play videos muted. Defaults to true.
func (s *Store) SetMuteVideo(mute bool) {
	s.muteVideo = mute
}

func (s *Store) IsMuteVideo() bool {
	return s.muteVideo
}

func (s *Store) indexOf(id string) int {
	for i, a := range s.assets {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}
