// Package decode turns raw asset bytes into display-sized images.
//
// A Pipeline coalesces concurrent requests per identifier so that at most one
// decode for a given identifier runs at any instant. Bookkeeping happens on a
// single coordination lane; decoding runs on a bounded set of workers; results
// are cached and handed to every waiting caller through a delivery executor.
package decode

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"runtime"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// ErrDecodeFailed is returned by Decoded when no image could be produced.
var ErrDecodeFailed = errors.New("decode: no image produced")

// Cache stores decoded images by identifier. It must be safe for concurrent use.
type Cache interface {
	Get(id string) (image.Image, bool)
	Set(id string, img image.Image)
}

// Completion receives the decoded image, or nil when decoding failed.
type Completion func(image.Image)

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	Workers       int                // Maximum concurrent decodes (default: GOMAXPROCS)
	Scale         float64            // Pixels per point (default: 2)
	DefaultTarget geom.Size          // Target used when a request passes a zero size, in points
	Cache         Cache              // Shared image cache (default: a private LRU cache)
	Delivery      dispatch.Executor  // Where completions run (default: a private serial queue)
	Decoder       Decoder            // Decoding strategy (default: Downsample)
	Logger        *slog.Logger       // Defaults to the internal component logger
}

type task struct {
	id          string
	raw         []byte
	maxPixels   int
	cancelled   atomic.Bool
	completions []Completion
}

// Pipeline is the image cache and decode pipeline.
type Pipeline struct {
	lane        *dispatch.Queue
	delivery    dispatch.Executor
	ownDelivery *dispatch.Queue
	sem         *semaphore.Weighted
	cache       Cache
	decoder     Decoder
	scale       float64
	fallback    geom.Size
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	decodes atomic.Int64

	// owned by lane
	tasks map[string]*task
}

// NewPipeline starts a decode pipeline.
func NewPipeline(opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 2
	}
	cache := opts.Cache
	if cache == nil {
		cache = internal.NewImageCache()
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = Downsample
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.ComponentLogger("decode")
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline{
		lane:     dispatch.NewQueue("decode.lane"),
		sem:      semaphore.NewWeighted(int64(workers)),
		cache:    cache,
		decoder:  decoder,
		scale:    scale,
		fallback: opts.DefaultTarget,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]*task),
	}

	if opts.Delivery != nil {
		p.delivery = opts.Delivery
	} else {
		p.ownDelivery = dispatch.NewQueue("decode.delivery")
		p.delivery = p.ownDelivery
	}

	return p
}

// FetchDecoded decodes raw for id at target size and hands the result to done.
// It returns immediately. Concurrent calls for the same id share one decode
// and their completions run in registration order.
func (p *Pipeline) FetchDecoded(id string, raw []byte, target geom.Size, done Completion) {
	if p.closed.Load() {
		return
	}

	maxPixels := p.maxPixels(target)

	p.lane.Dispatch(func() {
		if t, ok := p.tasks[id]; ok {
			if done != nil {
				t.completions = append(t.completions, done)
			}
			// A cancelled task that has not reported back yet is picked up
			// again instead of starting a second decode.
			t.cancelled.Store(false)
			return
		}

		if img, ok := p.cache.Get(id); ok {
			if done != nil {
				p.deliver([]Completion{done}, img)
			}
			return
		}

		t := &task{id: id, raw: raw, maxPixels: maxPixels}
		if done != nil {
			t.completions = append(t.completions, done)
		}
		p.tasks[id] = t
		go p.run(t)
	})
}

// Decoded is the blocking form of FetchDecoded.
func (p *Pipeline) Decoded(ctx context.Context, id string, raw []byte, target geom.Size) (image.Image, error) {
	result := make(chan image.Image, 1)
	p.FetchDecoded(id, raw, target, func(img image.Image) {
		result <- img
	})

	select {
	case img := <-result:
		if img == nil {
			return nil, ErrDecodeFailed
		}
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CachedImage returns the cached image for id without starting any work.
func (p *Pipeline) CachedImage(id string) (image.Image, bool) {
	return p.cache.Get(id)
}

// Cancel drops the pending completions for id. A decode that has already
// started is not interrupted and still populates the cache.
func (p *Pipeline) Cancel(id string) {
	p.lane.Dispatch(func() {
		t, ok := p.tasks[id]
		if !ok {
			return
		}
		t.cancelled.Store(true)
		t.completions = nil
		p.logger.Debug("Decode cancelled", "id", id)
	})
}

// InFlight returns the number of identifiers with an active decode.
func (p *Pipeline) InFlight() int {
	n := 0
	p.lane.Sync(func() {
		n = len(p.tasks)
	})
	return n
}

// Decodes returns how many times the decoder has run.
func (p *Pipeline) Decodes() int64 {
	return p.decodes.Load()
}

// Close stops the pipeline. Pending completions are dropped.
func (p *Pipeline) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	p.lane.Close()
	if p.ownDelivery != nil {
		p.ownDelivery.Close()
	}
}

func (p *Pipeline) maxPixels(target geom.Size) int {
	if target.IsZero() {
		target = p.fallback
	}
	if target.IsZero() {
		return 0
	}
	return int(target.MaxDimension() * p.scale)
}

func (p *Pipeline) run(t *task) {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	if t.cancelled.Load() {
		p.lane.Dispatch(func() { p.finish(t, nil, true) })
		return
	}

	p.decodes.Inc()
	img, err := p.decoder(t.raw, t.maxPixels)
	if err != nil {
		p.logger.Warn("Decode failed", "id", t.id, "bytes", len(t.raw), "error", err)
		img = nil
	}

	if img != nil {
		p.cache.Set(t.id, img)
	}

	p.lane.Dispatch(func() { p.finish(t, img, false) })
}

// finish runs on the lane.
func (p *Pipeline) finish(t *task, img image.Image, skipped bool) {
	if p.tasks[t.id] != t {
		return
	}

	if skipped && len(t.completions) > 0 {
		// Revived after the worker saw the cancel flag.
		t.cancelled.Store(false)
		go p.run(t)
		return
	}

	delete(p.tasks, t.id)
	if len(t.completions) > 0 {
		p.deliver(t.completions, img)
	}
}

func (p *Pipeline) deliver(completions []Completion, img image.Image) {
	for _, c := range completions {
		c := c
		p.delivery.Dispatch(func() { c(img) })
	}
}
