package library

import (
	"bufio"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

const testManifest = `
[[asset]]
id = "clip"
file = "clip.mp4"
kind = "video"
width = 1920
height = 1080
duration = 75.5
bytes = 1048576
poster = "clip.png"

[[asset]]
id = "cloud-photo"
file = "cloud/photo.png"
width = 64
height = 32
`

func newTestLibrary(t *testing.T, opts ...DirOption) (*Dir, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestFile), []byte(testManifest))
	writeFile(t, filepath.Join(root, "clip.mp4"), []byte("not really a video"))
	writeFile(t, filepath.Join(root, "clip.png"), pngBytes(t, 40, 20))
	writeFile(t, filepath.Join(root, "b.png"), pngBytes(t, 300, 100))
	writeFile(t, filepath.Join(root, "a.png"), pngBytes(t, 10, 10))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("ignored"))

	d, err := OpenDir(root, opts...)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	return d, root
}

func TestScan(t *testing.T) {
	d, _ := newTestLibrary(t)

	assets, err := d.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	wantIDs := []string{"clip", "cloud-photo", "a.png", "b.png"}
	if len(assets) != len(wantIDs) {
		t.Fatalf("Expected %d assets, got %d: %+v", len(wantIDs), len(assets), assets)
	}
	for i, id := range wantIDs {
		if assets[i].ID != id {
			t.Errorf("Expected asset %d to be %q, got %q", i, id, assets[i].ID)
		}
	}

	clip := assets[0]
	if !clip.IsVideo() || clip.Duration != 75500*time.Millisecond || clip.ByteSize != 1048576 {
		t.Errorf("Unexpected video metadata: %+v", clip)
	}
	if assets[1].Kind != constants.MediaKindImage {
		t.Errorf("Expected kind inferred from extension, got %v", assets[1].Kind)
	}
	if assets[3].PixelWidth != 300 || assets[3].PixelHeight != 100 {
		t.Errorf("Expected header size 300x100, got %dx%d", assets[3].PixelWidth, assets[3].PixelHeight)
	}
}

func TestRequestImageLocal(t *testing.T) {
	d, _ := newTestLibrary(t)

	var got image.Image
	var info Info
	d.RequestImage(Asset{ID: "b.png"}, geom.Size{Width: 30, Height: 30}, RequestOptions{Synchronous: true}, func(img image.Image, i Info) {
		got, info = img, i
	})

	if got == nil {
		t.Fatalf("Expected an image, got error %v", info.Err)
	}
	if got.Bounds().Dx() != 30 || got.Bounds().Dy() != 10 {
		t.Errorf("Expected 30x10, got %v", got.Bounds())
	}
	if info.InCloud {
		t.Error("Expected a local asset")
	}
}

func TestRequestImageUsesVideoPoster(t *testing.T) {
	d, _ := newTestLibrary(t)

	var got image.Image
	d.RequestImage(Asset{ID: "clip"}, geom.Size{}, RequestOptions{Synchronous: true}, func(img image.Image, _ Info) {
		got = img
	})
	if got == nil || got.Bounds().Dx() != 40 {
		t.Errorf("Expected the 40px poster frame, got %v", got)
	}
}

func TestCloudAssetWithoutNetwork(t *testing.T) {
	d, _ := newTestLibrary(t)

	cloud := Asset{ID: "cloud-photo"}
	if !d.IsInCloud(cloud) {
		t.Fatal("Expected cloud-photo to be in the cloud")
	}

	var info Info
	var got image.Image
	d.RequestImage(cloud, geom.Size{}, RequestOptions{Synchronous: true}, func(img image.Image, i Info) {
		got, info = img, i
	})
	if got != nil || !info.InCloud || info.Err != nil {
		t.Errorf("Expected no image with the cloud flag, got %v %+v", got, info)
	}
}

func TestCloudDownloadReportsProgress(t *testing.T) {
	payload := pngBytes(t, 64, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cloud/photo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	d, root := newTestLibrary(t, WithRemote(srv.URL), WithKeepDownloads(true))

	var mu sync.Mutex
	var progress []float64
	opts := RequestOptions{
		NetworkAllowed: true,
		Synchronous:    true,
		Progress: func(p float64, err error, _ Info) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("Unexpected progress error: %v", err)
			}
			progress = append(progress, p)
		},
	}

	var got []byte
	var info Info
	d.RequestData(Asset{ID: "cloud-photo"}, opts, func(raw []byte, i Info) {
		got, info = raw, i
	})

	if !bytes.Equal(got, payload) {
		t.Fatalf("Expected downloaded bytes, got %d bytes (err %v)", len(got), info.Err)
	}
	if !info.InCloud {
		t.Error("Expected the cloud flag on a downloaded asset")
	}
	if len(progress) == 0 || progress[len(progress)-1] != 1.0 {
		t.Errorf("Expected progress to end at 1.0, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("Expected monotonic progress, got %v", progress)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "cloud", "photo.png")); err != nil {
		t.Errorf("Expected download to be kept locally: %v", err)
	}
	if d.IsInCloud(Asset{ID: "cloud-photo"}) {
		t.Error("Expected kept download to be served locally")
	}
}

func TestCancelRequestStopsDownload(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d, _ := newTestLibrary(t, WithRemote(srv.URL))

	done := make(chan Info, 1)
	id := d.RequestData(Asset{ID: "cloud-photo"}, RequestOptions{NetworkAllowed: true}, func(_ []byte, i Info) {
		done <- i
	})

	time.Sleep(20 * time.Millisecond)
	d.CancelRequest(id)

	select {
	case info := <-done:
		if !info.Cancelled {
			t.Errorf("Expected a cancelled result, got %+v", info)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancelled request")
	}
}

func TestUnknownAsset(t *testing.T) {
	d, _ := newTestLibrary(t)

	var info Info
	d.RequestData(Asset{ID: "missing.png"}, RequestOptions{Synchronous: true}, func(_ []byte, i Info) {
		info = i
	})
	if info.Err == nil {
		t.Error("Expected an error for an unknown asset")
	}
}

// rawServer answers every connection with response verbatim, so headers the
// net/http server would refuse to send can be tested.
func rawServer(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadString('\n')
					if err != nil || line == "\r\n" {
						break
					}
				}
				_, _ = conn.Write([]byte(response))
			}()
		}
	}()
	return "http://" + ln.Addr().String()
}

func TestDownloadRejectsOversizedContentLength(t *testing.T) {
	url := rawServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 9000000000000000000\r\nConnection: close\r\n\r\nabc")
	d, _ := newTestLibrary(t, WithRemote(url))

	var got []byte
	var info Info
	var progressErr error
	opts := RequestOptions{
		NetworkAllowed: true,
		Synchronous:    true,
		Progress: func(_ float64, err error, _ Info) {
			if err != nil {
				progressErr = err
			}
		},
	}
	d.RequestData(Asset{ID: "cloud-photo"}, opts, func(raw []byte, i Info) {
		got, info = raw, i
	})

	if got != nil {
		t.Errorf("Expected no bytes, got %d", len(got))
	}
	if !errors.Is(info.Err, ErrDownloadTooLarge) {
		t.Errorf("Expected ErrDownloadTooLarge, got %v", info.Err)
	}
	if !errors.Is(progressErr, ErrDownloadTooLarge) {
		t.Errorf("Expected the limit error in progress, got %v", progressErr)
	}
}

func TestDownloadStopsAtLimitWithoutContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the body forces chunked encoding with no length.
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write(bytes.Repeat([]byte("x"), 4096))
	}))
	defer srv.Close()

	d, _ := newTestLibrary(t, WithRemote(srv.URL), WithMaxDownloadBytes(1024))

	var info Info
	d.RequestData(Asset{ID: "cloud-photo"}, RequestOptions{NetworkAllowed: true, Synchronous: true}, func(_ []byte, i Info) {
		info = i
	})
	if !errors.Is(info.Err, ErrDownloadTooLarge) {
		t.Errorf("Expected ErrDownloadTooLarge, got %v", info.Err)
	}
}
