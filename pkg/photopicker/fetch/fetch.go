// Package fetch retrieves asset renditions from a library.Service, escalating
// to a network download when the local copy is missing or cloud-only.
//
// At most one tracked download per asset is outstanding at a time. Callers that
// ask for an asset that is already downloading are attached to the running
// request and receive the same progress and result.
package fetch

import (
	"image"
	"log/slog"
	"sync"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
	"go.uber.org/atomic"
)

// NetworkPolicy controls whether a fetch may leave the device.
type NetworkPolicy int

const (
	LocalOnly NetworkPolicy = iota
	AllowNetwork
)

func (p NetworkPolicy) String() string {
	if p == AllowNetwork {
		return "allow-network"
	}
	return "local-only"
}

// ProgressFunc receives download progress in [0, 1] and an optional error.
type ProgressFunc func(progress float64, err error)

// Cache is the "latest rendering per asset" store. It is normally shared
// with the decode pipeline.
type Cache interface {
	Get(id string) (image.Image, bool)
	Set(id string, img image.Image)
	Values() []image.Image
}

// Options configures a Fetcher. Zero values select defaults.
type Options struct {
	UI     dispatch.Executor    // Where progress and completions run (default: a private serial queue)
	Cache  Cache                // Shared image cache (default: a private LRU cache)
	Mode   library.DeliveryMode // Delivery mode of the local request
	Logger *slog.Logger         // Defaults to the internal component logger
}

// FetchRequest is one tracked network download.
type FetchRequest struct {
	AssetID string
	Target  geom.Size
	Policy  NetworkPolicy
	Mode    library.DeliveryMode

	progress atomic.Float64

	// guarded by Fetcher.mu
	handle    library.RequestID
	cancelled bool
	waiters   []waiter
}

// Progress returns the highest progress reported so far.
func (r *FetchRequest) Progress() float64 {
	return r.progress.Load()
}

func (r *FetchRequest) advance(p float64) {
	for {
		cur := r.progress.Load()
		if p <= cur || r.progress.CompareAndSwap(cur, p) {
			return
		}
	}
}

type waiter struct {
	progress ProgressFunc
	image    func(image.Image, library.Info)
	data     func([]byte, library.Info)
}

type trackKey struct {
	asset string
	data  bool
}

// Fetcher is the remote asset fetcher.
type Fetcher struct {
	service library.Service
	ui      dispatch.Executor
	ownUI   *dispatch.Queue
	cache   Cache
	mode    library.DeliveryMode
	logger  *slog.Logger

	mu          sync.Mutex
	downloading map[trackKey]*FetchRequest

	uiMu   sync.RWMutex
	closed bool // private queue closed, deliver on the caller instead
}

// New creates a Fetcher reading from service.
func New(service library.Service, opts Options) *Fetcher {
	f := &Fetcher{
		service:     service,
		cache:       opts.Cache,
		mode:        opts.Mode,
		logger:      opts.Logger,
		downloading: make(map[trackKey]*FetchRequest),
	}
	if f.cache == nil {
		f.cache = internal.NewImageCache()
	}
	if f.logger == nil {
		f.logger = internal.ComponentLogger("fetch")
	}
	if opts.UI != nil {
		f.ui = opts.UI
	} else {
		f.ownUI = dispatch.NewQueue("fetch.ui")
		f.ui = f.ownUI
	}
	return f
}

// Fetch delivers an image for asset sized to target, in pixels.
//
// A cached rendering is returned straight away. Otherwise the library is
// asked for a local copy, which is handed to done as soon as it exists. When
// there is no local image, or the library reports the asset as cloud-only,
// and policy allows it, a tracked download follows and done runs again with
// its result. done therefore runs once or twice; the last call is final.
func (f *Fetcher) Fetch(asset library.Asset, target geom.Size, policy NetworkPolicy, progress ProgressFunc, done func(image.Image, library.Info)) {
	if img, ok := f.cache.Get(asset.ID); ok {
		f.deliver(func() { done(img, library.Info{}) })
		return
	}

	opts := library.RequestOptions{Synchronous: true, Mode: f.mode}
	f.service.RequestImage(asset, target, opts, func(img image.Image, info library.Info) {
		if img != nil {
			f.cache.Set(asset.ID, img)
		}

		escalate := (img == nil || info.InCloud) && policy == AllowNetwork && !info.Cancelled
		if img != nil || !escalate {
			f.deliver(func() { done(img, info) })
		}
		if escalate {
			f.logger.Debug("Escalating to network", "asset", asset.ID, "local", img != nil)
			f.download(asset, target, policy, waiter{progress: progress, image: done})
		}
	})
}

// FetchBytes downloads the asset's original bytes, tracked like the network
// tier of Fetch.
func (f *Fetcher) FetchBytes(asset library.Asset, progress ProgressFunc, done func([]byte, library.Info)) {
	f.download(asset, geom.Size{}, AllowNetwork, waiter{progress: progress, data: done})
}

// Cancel cancels the tracked download for asset, if any. Its waiters receive
// a result with Info.Cancelled set straight away.
func (f *Fetcher) Cancel(asset library.Asset) {
	f.mu.Lock()
	var dropped []*FetchRequest
	for _, key := range []trackKey{{asset: asset.ID}, {asset: asset.ID, data: true}} {
		if r := f.untrackLocked(key); r != nil {
			dropped = append(dropped, r)
		}
	}
	f.mu.Unlock()

	f.cancel(dropped)
}

// CancelAll cancels every tracked download and clears the bookkeeping.
func (f *Fetcher) CancelAll() {
	f.mu.Lock()
	var dropped []*FetchRequest
	for key := range f.downloading {
		if r := f.untrackLocked(key); r != nil {
			dropped = append(dropped, r)
		}
	}
	f.mu.Unlock()

	if len(dropped) > 0 {
		f.logger.Debug("Cancelling all downloads", "count", len(dropped))
	}
	f.cancel(dropped)
}

// cancel settles requests already removed by untrackLocked: the library is
// told to stop and every waiter gets a cancelled result.
func (f *Fetcher) cancel(dropped []*FetchRequest) {
	for _, r := range dropped {
		f.mu.Lock()
		handle := r.handle
		waiters := r.waiters
		r.waiters = nil
		f.mu.Unlock()

		if handle != "" {
			f.service.CancelRequest(handle)
		}
		f.settle(waiters, nil, nil, library.Info{RequestID: handle, Cancelled: true})
	}
}

// CachedImages returns a snapshot of every cached rendering.
func (f *Fetcher) CachedImages() []image.Image {
	return f.cache.Values()
}

// Downloading returns the number of tracked downloads.
func (f *Fetcher) Downloading() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.downloading)
}

// Request returns the tracked download for asset, if any.
func (f *Fetcher) Request(asset library.Asset) (*FetchRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.downloading[trackKey{asset: asset.ID}]
	return r, ok
}

// Close cancels outstanding downloads and stops the private UI queue.
// Cancelled results queued before Close are delivered first; anything that
// settles later runs on the goroutine that produced it.
func (f *Fetcher) Close() {
	f.CancelAll()
	if f.ownUI == nil {
		return
	}

	f.uiMu.Lock()
	f.closed = true
	f.uiMu.Unlock()
	f.ownUI.Close()
}

// deliver runs fn on the UI executor.
func (f *Fetcher) deliver(fn func()) {
	if f.ownUI == nil {
		f.ui.Dispatch(fn)
		return
	}

	f.uiMu.RLock()
	if f.closed {
		f.uiMu.RUnlock()
		fn()
		return
	}
	f.ui.Dispatch(fn)
	f.uiMu.RUnlock()
}

// untrackLocked removes key and marks its request cancelled. The library
// handle is cancelled by observe if it is not known yet.
func (f *Fetcher) untrackLocked(key trackKey) *FetchRequest {
	r, ok := f.downloading[key]
	if !ok {
		return nil
	}
	delete(f.downloading, key)
	r.cancelled = true
	return r
}

func (f *Fetcher) download(asset library.Asset, target geom.Size, policy NetworkPolicy, w waiter) {
	key := trackKey{asset: asset.ID, data: w.data != nil}

	f.mu.Lock()
	if r, ok := f.downloading[key]; ok {
		r.waiters = append(r.waiters, w)
		f.mu.Unlock()
		return
	}
	r := &FetchRequest{
		AssetID: asset.ID,
		Target:  target,
		Policy:  policy,
		Mode:    library.DeliveryHighQuality,
		waiters: []waiter{w},
	}
	f.downloading[key] = r
	f.mu.Unlock()

	opts := library.RequestOptions{
		NetworkAllowed: true,
		Mode:           r.Mode,
		Progress: func(p float64, err error, info library.Info) {
			f.progress(key, r, p, err, info)
		},
	}

	var handle library.RequestID
	if key.data {
		handle = f.service.RequestData(asset, opts, func(raw []byte, info library.Info) {
			f.finish(key, r, nil, raw, info)
		})
	} else {
		handle = f.service.RequestImage(asset, target, opts, func(img image.Image, info library.Info) {
			if img != nil {
				f.cache.Set(asset.ID, img)
			}
			f.finish(key, r, img, nil, info)
		})
	}
	f.observe(r, handle)
}

// observe records the library handle for r. The first handle seen wins; a
// request cancelled before its handle was known is cancelled now.
func (f *Fetcher) observe(r *FetchRequest, handle library.RequestID) {
	if handle == "" {
		return
	}

	f.mu.Lock()
	if r.handle != "" {
		f.mu.Unlock()
		return
	}
	r.handle = handle
	cancelNow := r.cancelled
	f.mu.Unlock()

	if cancelNow {
		f.service.CancelRequest(handle)
	}
}

func (f *Fetcher) progress(key trackKey, r *FetchRequest, p float64, err error, info library.Info) {
	f.observe(r, info.RequestID)
	r.advance(p)

	f.mu.Lock()
	if p >= 1.0 && f.downloading[key] == r {
		delete(f.downloading, key)
	}
	waiters := append([]waiter(nil), r.waiters...)
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("Download error", "asset", r.AssetID, "progress", p, "error", err)
	} else {
		f.logger.Debug("Download progress", "asset", r.AssetID, "progress", p)
	}

	for _, w := range waiters {
		if w.progress == nil {
			continue
		}
		w := w
		f.deliver(func() { w.progress(p, err) })
	}
}

func (f *Fetcher) finish(key trackKey, r *FetchRequest, img image.Image, raw []byte, info library.Info) {
	f.mu.Lock()
	if f.downloading[key] == r {
		delete(f.downloading, key)
	}
	if r.cancelled {
		info.Cancelled = true
	}
	waiters := r.waiters
	r.waiters = nil
	f.mu.Unlock()

	f.settle(waiters, img, raw, info)
}

func (f *Fetcher) settle(waiters []waiter, img image.Image, raw []byte, info library.Info) {
	for _, w := range waiters {
		w := w
		switch {
		case w.image != nil:
			f.deliver(func() { w.image(img, info) })
		case w.data != nil:
			f.deliver(func() { w.data(raw, info) })
		}
	}
}
