// Package library defines the asset library collaborator the picker core
// reads from, and Dir, a filesystem implementation with an optional HTTPS
// cloud tier.
package library

import (
	"image"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
)

// Asset is an opaque reference to a photo or video owned by the library.
// The picker reads it but never mutates it.
type Asset struct {
	ID          string
	Kind        constants.MediaKind
	PixelWidth  int
	PixelHeight int
	Duration    time.Duration // Zero for images
	ByteSize    int64         // Size of the original resource, 0 if unknown
}

// IsVideo reports whether the asset holds a video.
func (a Asset) IsVideo() bool {
	return a.Kind == constants.MediaKindVideo
}

// PixelSize returns the asset's original dimensions.
func (a Asset) PixelSize() geom.Size {
	return geom.Size{Width: float64(a.PixelWidth), Height: float64(a.PixelHeight)}
}

// RequestID identifies one outstanding library request.
type RequestID string

// DeliveryMode trades speed for quality.
type DeliveryMode int

const (
	DeliveryFastPreview DeliveryMode = iota // Any available rendition, possibly degraded
	DeliveryHighQuality                     // Only the best rendition for the target size
)

func (m DeliveryMode) String() string {
	if m == DeliveryHighQuality {
		return "high-quality"
	}
	return "fast-preview"
}

// Info is the metadata accompanying a result.
type Info struct {
	RequestID RequestID
	InCloud   bool  // The asset is only available over the network
	Degraded  bool  // A lower-quality rendition was delivered
	Cancelled bool  // The request was cancelled before it finished
	Err       error // Set when the request failed
}

// ProgressFunc receives download progress in [0, 1] and an optional error.
type ProgressFunc func(progress float64, err error, info Info)

// RequestOptions tunes a single request.
type RequestOptions struct {
	NetworkAllowed bool
	Synchronous    bool // Deliver before the request call returns where possible
	Mode           DeliveryMode
	Progress       ProgressFunc // Only invoked for network downloads
}

// Service is the platform asset library. Completions may run on any
// goroutine; callers marshal them onto their own executor.
type Service interface {
	RequestImage(asset Asset, target geom.Size, opts RequestOptions, done func(image.Image, Info)) RequestID
	RequestData(asset Asset, opts RequestOptions, done func([]byte, Info)) RequestID
	CancelRequest(id RequestID)
}
