package fetch

import (
	"image"
	"sync"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
)

// batchProgress aggregates per-asset progress. Each asset owns
// constants.BatchUnitCount units.
type batchProgress struct {
	mu        sync.Mutex
	completed []int64
	cancelled []bool
	total     int64
}

func newBatchProgress(n int) *batchProgress {
	return &batchProgress{
		completed: make([]int64, n),
		cancelled: make([]bool, n),
		total:     int64(n * constants.BatchUnitCount),
	}
}

// update sets the units for asset i from p and returns the aggregate fraction.
func (b *batchProgress) update(i int, p float64, err error) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cancelled[i] {
		units := int64(p * constants.BatchUnitCount)
		units = min(max(units, 0), constants.BatchUnitCount)
		if units > b.completed[i] {
			b.completed[i] = units
		}
		if err != nil {
			b.cancelled[i] = true
		}
	}
	return b.fractionLocked()
}

func (b *batchProgress) fractionLocked() float64 {
	if b.total == 0 {
		return 1
	}
	var sum int64
	for _, c := range b.completed {
		sum += c
	}
	return float64(sum) / float64(b.total)
}

// FetchBatch downloads every asset concurrently. progress receives the
// aggregate fraction as sub-downloads advance. done runs exactly once, after
// every sub-download has settled, with the images that were obtained in the
// order of assets. A failed asset is left out without affecting the others.
func (f *Fetcher) FetchBatch(assets []library.Asset, target geom.Size, progress func(float64), done func([]image.Image)) {
	if len(assets) == 0 {
		f.deliver(func() { done(nil) })
		return
	}

	agg := newBatchProgress(len(assets))
	results := make([]image.Image, len(assets))
	var wg sync.WaitGroup

	report := func(i int, p float64, err error) {
		frac := agg.update(i, p, err)
		if progress != nil {
			progress(frac)
		}
	}

	for i, asset := range assets {
		wg.Add(1)

		if img, ok := f.cache.Get(asset.ID); ok {
			results[i] = img
			f.deliver(func() {
				report(i, 1, nil)
				wg.Done()
			})
			continue
		}

		f.download(asset, target, AllowNetwork, waiter{
			progress: func(p float64, err error) {
				report(i, p, err)
			},
			image: func(img image.Image, info library.Info) {
				defer wg.Done()
				if img == nil {
					f.logger.Warn("Batch item failed", "asset", asset.ID, "error", info.Err, "cancelled", info.Cancelled)
					return
				}
				results[i] = img
				report(i, 1, nil)
			},
		})
	}

	go func() {
		wg.Wait()
		images := make([]image.Image, 0, len(results))
		for _, img := range results {
			if img != nil {
				images = append(images, img)
			}
		}
		f.deliver(func() { done(images) })
	}()
}
