package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxSourcePixels bounds the header-reported size of raster sources. Larger
// sources are refused before any pixel data is decoded.
const MaxSourcePixels = 100_000_000

var (
	ErrEmptyData         = errors.New("decode: empty image data")
	ErrUnsupportedFormat = errors.New("decode: unsupported image format")
	ErrSourceTooLarge    = errors.New("decode: source exceeds pixel limit")
)

// Decoder turns encoded bytes into an image whose longest side is at most
// maxPixels. maxPixels <= 0 means full resolution.
type Decoder func(raw []byte, maxPixels int) (image.Image, error)

// Downsample is the default Decoder using CatmullRom resampling.
func Downsample(raw []byte, maxPixels int) (image.Image, error) {
	return DownsampleWith(draw.CatmullRom, raw, maxPixels)
}

// DownsampleFast is a Decoder trading quality for speed, suited to grid thumbnails.
func DownsampleFast(raw []byte, maxPixels int) (image.Image, error) {
	return DownsampleWith(draw.ApproxBiLinear, raw, maxPixels)
}

// DownsampleWith decodes raw and scales it with the given interpolator.
// The header is inspected first so oversized sources fail without
// allocating their pixel buffer. SVG sources are rasterised directly at
// the target size.
func DownsampleWith(interp draw.Interpolator, raw []byte, maxPixels int) (image.Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyData
	}

	if isSVG(raw) {
		return rasterizeSVG(raw, maxPixels)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("decode: read header: %w", err)
	}
	if cfg.Width*cfg.Height > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d %s", ErrSourceTooLarge, cfg.Width, cfg.Height, format)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %s: %w", format, err)
	}

	w, h, scaled := fitWithin(cfg.Width, cfg.Height, maxPixels)
	if !scaled {
		return src, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// fitWithin scales (w, h) so the longest side is maxPixels, keeping aspect
// ratio. It reports false when no scaling is needed.
func fitWithin(w, h, maxPixels int) (int, int, bool) {
	longest := max(w, h)
	if maxPixels <= 0 || longest <= maxPixels {
		return w, h, false
	}

	ratio := float64(maxPixels) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*ratio)))
	nh := max(1, int(math.Round(float64(h)*ratio)))
	return nw, nh, true
}

func isSVG(raw []byte) bool {
	head := raw
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg")))
}

func rasterizeSVG(raw []byte, maxPixels int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(raw), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("decode: svg: %w", err)
	}

	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return nil, fmt.Errorf("decode: svg: empty view box")
	}

	// Vector sources render at exactly the requested size.
	if maxPixels > 0 {
		ratio := float64(maxPixels) / math.Max(vw, vh)
		vw, vh = vw*ratio, vh*ratio
	}
	w, h := max(1, int(math.Round(vw))), max(1, int(math.Round(vh)))

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return dst, nil
}
