package transition

import (
	"sync"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
)

// Driver calls step once per frame between Start and Stop. step must run on
// the executor that owns the Machine.
type Driver interface {
	Start(step func(dt time.Duration))
	Stop()
}

// FrameDriver ticks at a fixed interval and dispatches each frame onto an
// executor.
type FrameDriver struct {
	executor dispatch.Executor
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewFrameDriver creates a driver that steps on executor. A zero interval
// selects 60 frames per second.
func NewFrameDriver(executor dispatch.Executor, interval time.Duration) *FrameDriver {
	if interval <= 0 {
		interval = constants.DefaultFrameInterval
	}
	return &FrameDriver{executor: executor, interval: interval}
}

func (d *FrameDriver) Start(step func(dt time.Duration)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		return
	}
	stop := make(chan struct{})
	d.stop = stop

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				dt := now.Sub(last)
				last = now
				d.executor.Dispatch(func() {
					select {
					case <-stop:
					default:
						step(dt)
					}
				})
			}
		}
	}()
}

func (d *FrameDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
}

// ManualDriver steps only when told to. Tests and hosts with their own frame
// loop use it.
type ManualDriver struct {
	step func(dt time.Duration)
}

func (d *ManualDriver) Start(step func(dt time.Duration)) {
	d.step = step
}

func (d *ManualDriver) Stop() {
	d.step = nil
}

// Running reports whether the driver has been started and not stopped.
func (d *ManualDriver) Running() bool {
	return d.step != nil
}

// Advance delivers one frame of length dt.
func (d *ManualDriver) Advance(dt time.Duration) {
	if d.step != nil {
		d.step(dt)
	}
}

// Settle advances in frame-sized steps until the driver is stopped or
// maxFrames have run. It returns the number of frames delivered.
func (d *ManualDriver) Settle(frame time.Duration, maxFrames int) int {
	n := 0
	for d.step != nil && n < maxFrames {
		d.Advance(frame)
		n++
	}
	return n
}
