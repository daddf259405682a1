package library

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/decode"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// ManifestFile is the metadata file read from the library root.
const ManifestFile = "library.toml"

var (
	ErrAssetNotFound = errors.New("library: asset not found")
	ErrNoRemote      = errors.New("library: asset is in the cloud and no remote is configured")
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true, ".svg": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".mkv": true,
}

// ManifestEntry describes one asset in library.toml. Assets listed here whose
// File is missing from the root are treated as cloud-only.
type ManifestEntry struct {
	ID       string  `toml:"id"`
	File     string  `toml:"file"`
	Kind     string  `toml:"kind"` // "image" or "video"; inferred from the extension when empty
	Width    int     `toml:"width"`
	Height   int     `toml:"height"`
	Duration float64 `toml:"duration"` // Seconds, videos only
	Bytes    int64   `toml:"bytes"`
	Poster   string  `toml:"poster"` // Still frame used as a video's image rendition
}

type manifest struct {
	Assets []ManifestEntry `toml:"asset"`
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithRemote sets the HTTPS base URL cloud-only assets are downloaded from.
func WithRemote(baseURL string) DirOption {
	return func(d *Dir) {
		d.remote = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the client used for cloud downloads.
func WithHTTPClient(c *http.Client) DirOption {
	return func(d *Dir) {
		d.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DirOption {
	return func(d *Dir) {
		d.logger = l
	}
}

// WithKeepDownloads stores downloaded cloud assets under the root so later
// requests are served locally.
func WithKeepDownloads(keep bool) DirOption {
	return func(d *Dir) {
		d.keepDownloads = keep
	}
}

// WithMaxDownloadBytes bounds the size of a single cloud download. Larger
// bodies fail with ErrDownloadTooLarge.
func WithMaxDownloadBytes(n int64) DirOption {
	return func(d *Dir) {
		if n > 0 {
			d.maxDownload = n
		}
	}
}

// Dir is a Service backed by a directory, with cloud-only assets fetched from
// a remote over HTTPS.
type Dir struct {
	root          string
	remote        string
	client        *http.Client
	logger        *slog.Logger
	keepDownloads bool
	maxDownload   int64

	entries map[string]ManifestEntry
	order   []string

	mu       sync.Mutex
	inflight map[RequestID]context.CancelFunc
}

// OpenDir opens the library rooted at root, reading library.toml if present.
func OpenDir(root string, opts ...DirOption) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("library: open root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library: %s is not a directory", root)
	}

	d := &Dir{
		root:        root,
		client:      &http.Client{Timeout: 2 * time.Minute},
		maxDownload: DefaultMaxDownloadBytes,
		entries:     make(map[string]ManifestEntry),
		inflight:    make(map[RequestID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = internal.ComponentLogger("library")
	}

	var m manifest
	manifestPath := filepath.Join(root, ManifestFile)
	if _, err := toml.DecodeFile(manifestPath, &m); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("library: read manifest: %w", err)
	}
	for _, e := range m.Assets {
		if e.ID == "" {
			e.ID = e.File
		}
		if e.File == "" {
			e.File = e.ID
		}
		if _, dup := d.entries[e.ID]; dup {
			return nil, fmt.Errorf("library: duplicate asset id %q in manifest", e.ID)
		}
		d.entries[e.ID] = e
		d.order = append(d.order, e.ID)
	}

	return d, nil
}

// Scan lists the library's assets: manifest entries in manifest order, then
// media files under the root that the manifest does not mention, by name.
func (d *Dir) Scan() ([]Asset, error) {
	assets := make([]Asset, 0, len(d.order))
	known := make(map[string]bool, len(d.order))
	for _, id := range d.order {
		e := d.entries[id]
		assets = append(assets, e.asset())
		known[filepath.ToSlash(e.File)] = true
		if e.Poster != "" {
			known[filepath.ToSlash(e.Poster)] = true
		}
	}

	var extra []Asset
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != d.root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if known[rel] || rel == ManifestFile {
			return nil
		}

		kind := kindOf(rel)
		if kind == constants.MediaKindUnknown {
			return nil
		}

		a := Asset{ID: rel, Kind: kind}
		if info, err := entry.Info(); err == nil {
			a.ByteSize = info.Size()
		}
		if kind == constants.MediaKindImage {
			a.PixelWidth, a.PixelHeight = imageHeaderSize(path)
		}
		extra = append(extra, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("library: scan: %w", err)
	}

	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })
	return append(assets, extra...), nil
}

// IsInCloud reports whether the asset's bytes are missing locally.
func (d *Dir) IsInCloud(asset Asset) bool {
	_, ok := d.localFile(asset, false)
	_, listed := d.entries[asset.ID]
	return !ok && listed
}

// RequestImage loads the asset and scales it so its longest side fits the
// target, in pixels. A zero target returns the full resolution.
func (d *Dir) RequestImage(asset Asset, target geom.Size, opts RequestOptions, done func(image.Image, Info)) RequestID {
	id := RequestID(uuid.NewString())
	ctx := d.track(id)

	work := func() {
		defer d.untrack(id)

		raw, info := d.load(ctx, id, asset, true, opts)
		if raw == nil {
			done(nil, info)
			return
		}

		maxPixels := 0
		if !target.IsZero() {
			maxPixels = int(target.MaxDimension())
		}
		decoder := decode.DownsampleFast
		if opts.Mode == DeliveryHighQuality {
			decoder = decode.Downsample
		}

		img, err := decoder(raw, maxPixels)
		if err != nil {
			info.Err = err
			d.logger.Warn("Failed to decode asset", "asset", asset.ID, "error", err)
		}
		done(img, info)
	}

	if opts.Synchronous {
		work()
	} else {
		go work()
	}
	return id
}

// RequestData loads the asset's original bytes.
func (d *Dir) RequestData(asset Asset, opts RequestOptions, done func([]byte, Info)) RequestID {
	id := RequestID(uuid.NewString())
	ctx := d.track(id)

	work := func() {
		defer d.untrack(id)
		raw, info := d.load(ctx, id, asset, false, opts)
		done(raw, info)
	}

	if opts.Synchronous {
		work()
	} else {
		go work()
	}
	return id
}

// CancelRequest cancels an in-flight request. Unknown ids are ignored.
func (d *Dir) CancelRequest(id RequestID) {
	d.mu.Lock()
	cancel, ok := d.inflight[id]
	delete(d.inflight, id)
	d.mu.Unlock()

	if ok {
		cancel()
		d.logger.Debug("Request cancelled", "request", string(id))
	}
}

func (d *Dir) track(id RequestID) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.inflight[id] = cancel
	d.mu.Unlock()
	return ctx
}

func (d *Dir) untrack(id RequestID) {
	d.mu.Lock()
	cancel, ok := d.inflight[id]
	delete(d.inflight, id)
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Dir) load(ctx context.Context, id RequestID, asset Asset, rendition bool, opts RequestOptions) ([]byte, Info) {
	info := Info{RequestID: id}

	if path, ok := d.localFile(asset, rendition); ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			info.Err = fmt.Errorf("library: read %s: %w", asset.ID, err)
			return nil, info
		}
		return raw, info
	}

	entry, listed := d.entries[asset.ID]
	if !listed {
		info.Err = fmt.Errorf("%w: %s", ErrAssetNotFound, asset.ID)
		return nil, info
	}

	info.InCloud = true
	if !opts.NetworkAllowed {
		return nil, info
	}
	if d.remote == "" {
		info.Err = ErrNoRemote
		reportProgress(opts.Progress, 0, info.Err, info)
		return nil, info
	}

	file := entry.File
	if rendition && entry.Poster != "" {
		file = entry.Poster
	}

	raw, err := d.download(ctx, file, opts.Progress, info)
	if err != nil {
		if ctx.Err() != nil {
			info.Cancelled = true
			return nil, info
		}
		info.Err = err
		return nil, info
	}

	if d.keepDownloads {
		d.persist(file, raw)
	}
	return raw, info
}

// localFile resolves the file that serves the asset. For image renditions of
// videos the poster frame is used.
func (d *Dir) localFile(asset Asset, rendition bool) (string, bool) {
	rel := asset.ID
	if e, ok := d.entries[asset.ID]; ok {
		rel = e.File
		if rendition && e.Poster != "" {
			rel = e.Poster
		}
	}

	path := filepath.Join(d.root, filepath.FromSlash(rel))
	if back, err := filepath.Rel(d.root, path); err != nil || back == ".." || strings.HasPrefix(back, ".."+string(os.PathSeparator)) {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func (d *Dir) persist(rel string, raw []byte) {
	path := filepath.Join(d.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		d.logger.Warn("Failed to keep download", "file", rel, "error", err)
		return
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		d.logger.Warn("Failed to keep download", "file", rel, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		d.logger.Warn("Failed to keep download", "file", rel, "error", err)
	}
}

func (e ManifestEntry) asset() Asset {
	kind := constants.MediaKindUnknown
	switch strings.ToLower(e.Kind) {
	case "image":
		kind = constants.MediaKindImage
	case "video":
		kind = constants.MediaKindVideo
	default:
		kind = kindOf(e.File)
	}

	return Asset{
		ID:          e.ID,
		Kind:        kind,
		PixelWidth:  e.Width,
		PixelHeight: e.Height,
		Duration:    time.Duration(e.Duration * float64(time.Second)),
		ByteSize:    e.Bytes,
	}
}

func kindOf(name string) constants.MediaKind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExtensions[ext]:
		return constants.MediaKindImage
	case videoExtensions[ext]:
		return constants.MediaKindVideo
	default:
		return constants.MediaKindUnknown
	}
}

func imageHeaderSize(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func reportProgress(fn ProgressFunc, p float64, err error, info Info) {
	if fn != nil {
		fn(p, err, info)
	}
}
