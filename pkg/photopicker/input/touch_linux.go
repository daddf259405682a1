//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/transition"
	"github.com/holoplot/go-evdev"
)

// TouchSource reads a Linux touchscreen through evdev and reports drags.
type TouchSource struct {
	device     *evdev.InputDevice
	recognizer *PanRecognizer
	executor   dispatch.Executor
	logger     *slog.Logger

	scaleX, scaleY float64
	minX, minY     float64

	closeOnce sync.Once
}

// OpenTouch opens the evdev device at path. Coordinates are mapped from the
// device's absolute range onto screen, in points. Pans are delivered on
// executor.
func OpenTouch(path string, screen geom.Size, executor dispatch.Executor) (*TouchSource, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}

	t := &TouchSource{
		device:     dev,
		recognizer: NewPanRecognizer(DefaultSlop),
		executor:   executor,
		logger:     internal.ComponentLogger("input"),
		scaleX:     1,
		scaleY:     1,
	}

	if infos, err := dev.AbsInfos(); err == nil {
		if x, ok := infos[evdev.ABS_MT_POSITION_X]; ok && x.Maximum > x.Minimum && screen.Width > 0 {
			t.minX = float64(x.Minimum)
			t.scaleX = screen.Width / float64(x.Maximum-x.Minimum)
		}
		if y, ok := infos[evdev.ABS_MT_POSITION_Y]; ok && y.Maximum > y.Minimum && screen.Height > 0 {
			t.minY = float64(y.Minimum)
			t.scaleY = screen.Height / float64(y.Maximum-y.Minimum)
		}
	}

	if name, err := dev.Name(); err == nil {
		t.logger.Debug("Touch device opened", "path", path, "name", name)
	}
	return t, nil
}

// Dragging reports whether a drag is in progress.
func (t *TouchSource) Dragging() bool {
	return t.recognizer.Dragging()
}

// Run reads events until ctx is done or the device fails, calling handle for
// every pan.
func (t *TouchSource) Run(ctx context.Context, handle func(transition.Pan)) error {
	go func() {
		<-ctx.Done()
		t.Close()
	}()

	var x, y float64
	down, wasDown := false, false

	for {
		ev, err := t.device.ReadOne()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("input: read: %w", err)
		}

		switch ev.Type {
		case evdev.EV_ABS:
			switch ev.Code {
			case evdev.ABS_MT_POSITION_X, evdev.ABS_X:
				x = (float64(ev.Value) - t.minX) * t.scaleX
			case evdev.ABS_MT_POSITION_Y, evdev.ABS_Y:
				y = (float64(ev.Value) - t.minY) * t.scaleY
			}
		case evdev.EV_KEY:
			if ev.Code == evdev.BTN_TOUCH {
				down = ev.Value != 0
			}
		case evdev.EV_SYN:
			if ev.Code != evdev.SYN_REPORT {
				continue
			}
			now := time.Now()
			p := geom.Point{X: x, Y: y}

			var pan transition.Pan
			var ok bool
			switch {
			case down && !wasDown:
				t.recognizer.Down(p, now)
			case down:
				pan, ok = t.recognizer.Move(p, now)
			case wasDown:
				pan, ok = t.recognizer.Up(now)
			}
			wasDown = down

			if ok {
				t.executor.Dispatch(func() { handle(pan) })
			}
		}
	}
}

// Close releases the device. Run returns once it notices.
func (t *TouchSource) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.device.Close()
	})
	return err
}
