package decode

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
)

// gatedDecoder blocks every decode until release is closed.
type gatedDecoder struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	fail    bool
}

func newGatedDecoder() *gatedDecoder {
	return &gatedDecoder{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedDecoder) decode(raw []byte, maxPixels int) (image.Image, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.started <- struct{}{}
	<-g.release
	if g.fail {
		return nil, errors.New("corrupt")
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (g *gatedDecoder) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
}

func TestFetchDecodedCoalescesConcurrentRequests(t *testing.T) {
	dec := newGatedDecoder()
	p := NewPipeline(Options{Decoder: dec.decode, Delivery: dispatch.Inline})
	defer p.Close()

	var mu sync.Mutex
	var results []image.Image
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 1; i <= 3; i++ {
		i := i
		p.FetchDecoded("asset-1", []byte{1}, geom.Size{Width: 10, Height: 10}, func(img image.Image) {
			mu.Lock()
			results = append(results, img)
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	waitFor(t, dec.started)
	if n := p.InFlight(); n != 1 {
		t.Fatalf("Expected 1 task in flight, got %d", n)
	}
	close(dec.release)
	wg.Wait()

	if dec.Calls() != 1 {
		t.Errorf("Expected exactly one decode, got %d", dec.Calls())
	}
	if p.Decodes() != 1 {
		t.Errorf("Expected Decodes() to be 1, got %d", p.Decodes())
	}
	if results[0] == nil || results[0] != results[1] || results[1] != results[2] {
		t.Error("Expected every caller to receive the same image")
	}
	for i, v := range order {
		if v != i+1 {
			t.Errorf("Expected completions in registration order, got %v", order)
			break
		}
	}
}

func TestCachedImageAfterDecode(t *testing.T) {
	dec := newGatedDecoder()
	close(dec.release)
	p := NewPipeline(Options{Decoder: dec.decode})
	defer p.Close()

	if _, ok := p.CachedImage("a"); ok {
		t.Fatal("Expected empty cache")
	}

	img, err := p.Decoded(context.Background(), "a", []byte{1}, geom.Size{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	cached, ok := p.CachedImage("a")
	if !ok || cached != img {
		t.Fatal("Expected CachedImage to return the decoded image")
	}

	again, err := p.Decoded(context.Background(), "a", []byte{1}, geom.Size{})
	if err != nil || again != img {
		t.Errorf("Expected cached image on second fetch, got %v, %v", again, err)
	}
	if dec.Calls() != 1 {
		t.Errorf("Expected no new decode for a cached id, got %d calls", dec.Calls())
	}
}

func TestDecodeFailureDeliversNil(t *testing.T) {
	dec := newGatedDecoder()
	dec.fail = true
	close(dec.release)
	p := NewPipeline(Options{Decoder: dec.decode})
	defer p.Close()

	_, err := p.Decoded(context.Background(), "bad", []byte{0}, geom.Size{Width: 1, Height: 1})
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("Expected ErrDecodeFailed, got %v", err)
	}
	if _, ok := p.CachedImage("bad"); ok {
		t.Error("Expected failed decode to stay out of the cache")
	}
}

func TestCancelDropsCompletionsButStillCaches(t *testing.T) {
	dec := newGatedDecoder()
	p := NewPipeline(Options{Decoder: dec.decode, Delivery: dispatch.Inline})
	defer p.Close()

	called := make(chan struct{}, 1)
	p.FetchDecoded("c", []byte{1}, geom.Size{}, func(image.Image) { called <- struct{}{} })
	waitFor(t, dec.started)

	p.Cancel("c")
	p.InFlight() // drain the lane so the cancel is applied
	close(dec.release)

	deadline := time.Now().Add(2 * time.Second)
	for p.InFlight() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the task to finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-called:
		t.Error("Expected no completion after cancel")
	default:
	}
	if _, ok := p.CachedImage("c"); !ok {
		t.Error("Expected the finished decode to populate the cache")
	}
}

func TestRequestAfterCancelReusesRunningDecode(t *testing.T) {
	dec := newGatedDecoder()
	p := NewPipeline(Options{Decoder: dec.decode, Delivery: dispatch.Inline})
	defer p.Close()

	p.FetchDecoded("r", []byte{1}, geom.Size{}, nil)
	waitFor(t, dec.started)
	p.Cancel("r")

	got := make(chan image.Image, 1)
	p.FetchDecoded("r", []byte{1}, geom.Size{}, func(img image.Image) { got <- img })
	close(dec.release)

	select {
	case img := <-got:
		if img == nil {
			t.Error("Expected an image")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	if dec.Calls() != 1 {
		t.Errorf("Expected the running decode to be reused, got %d decodes", dec.Calls())
	}
}

func TestDecodedHonoursContext(t *testing.T) {
	dec := newGatedDecoder()
	p := NewPipeline(Options{Decoder: dec.decode})
	defer func() {
		close(dec.release)
		p.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Decoded(ctx, "slow", []byte{1}, geom.Size{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}
