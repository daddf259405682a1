package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	_ "github.com/BrandonKowalski/certifiable" // Add CA certificates to the default trust store
)

const (
	downloadChunk = 32 * 1024

	// DefaultMaxDownloadBytes bounds a single cloud download.
	DefaultMaxDownloadBytes int64 = 512 * 1024 * 1024

	// Preallocation from Content-Length never exceeds this; larger bodies grow
	// as they arrive.
	maxPrealloc int64 = 8 * 1024 * 1024
)

// ErrDownloadTooLarge is returned when a remote body exceeds the download limit.
var ErrDownloadTooLarge = errors.New("library: download exceeds size limit")

// download fetches rel from the remote, reporting progress as bytes arrive.
// Progress is only fractional when the server sends a Content-Length; it
// always ends with 1.0 on success.
func (d *Dir) download(ctx context.Context, rel string, progress ProgressFunc, info Info) ([]byte, error) {
	u, err := d.remoteURL(rel)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("library: build request: %w", err)
	}

	d.logger.Debug("Downloading cloud asset", "url", u, "request", string(info.RequestID))

	resp, err := d.client.Do(req)
	if err != nil {
		reportProgress(progress, 0, err, info)
		return nil, fmt.Errorf("library: download %s: %w", rel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("library: download %s: unexpected status %s", rel, resp.Status)
		reportProgress(progress, 0, err, info)
		return nil, err
	}

	total := resp.ContentLength
	if total > d.maxDownload {
		err := fmt.Errorf("%w: %s declares %d bytes, limit %d", ErrDownloadTooLarge, rel, total, d.maxDownload)
		reportProgress(progress, 0, err, info)
		return nil, err
	}

	buf := make([]byte, 0, min(max(total, 0), maxPrealloc))
	chunk := make([]byte, downloadChunk)
	body := io.LimitReader(resp.Body, d.maxDownload+1)
	var read int64

	for {
		n, rerr := body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			read += int64(n)
			if read > d.maxDownload {
				err := fmt.Errorf("%w: %s", ErrDownloadTooLarge, rel)
				reportProgress(progress, fraction(read, total), err, info)
				return nil, err
			}
			if total > 0 && read < total {
				reportProgress(progress, float64(read)/float64(total), nil, info)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			reportProgress(progress, fraction(read, total), rerr, info)
			return nil, fmt.Errorf("library: download %s: %w", rel, rerr)
		}
	}

	reportProgress(progress, 1.0, nil, info)
	return buf, nil
}

func (d *Dir) remoteURL(rel string) (string, error) {
	base, err := url.Parse(d.remote)
	if err != nil {
		return "", fmt.Errorf("library: remote url: %w", err)
	}

	return base.JoinPath(strings.Split(rel, "/")...).String(), nil
}

func fraction(read, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(read) / float64(total)
}
