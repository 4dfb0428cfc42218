// Package download fetches remote source media into a job's input
// directory. Plain http(s) mp4 URLs stream directly; everything else goes
// through yt-dlp.
package download

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sealium/transcription-api/internal/fsutil"
)

// Options tune a single download.
type Options struct {
	// CookiesFromBrowser forwards yt-dlp's --cookies-from-browser flag for
	// sources that need an authenticated session.
	CookiesFromBrowser string
}

// Downloader fetches a source URL into destPath and returns a display title
// for the media when one is available.
type Downloader interface {
	Download(ctx context.Context, sourceURL, destPath string, opts Options) (title string, err error)
}

// DirectHTTP streams a media file straight off an HTTP(S) URL.
type DirectHTTP struct {
	client *http.Client
}

// NewDirectHTTP creates the fetcher. The 60 second bound covers dialing,
// the TLS handshake and waiting for response headers; the body stream is
// governed by the request context, so a large file may take longer than
// 60 seconds to transfer without being cut off.
func NewDirectHTTP() *DirectHTTP {
	return &DirectHTTP{client: &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 60 * time.Second}).DialContext,
			TLSHandshakeTimeout:   60 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}}
}

// Download implements Downloader. The body streams to a temp file that is
// renamed into place on success.
func (d *DirectHTTP) Download(ctx context.Context, sourceURL, destPath string, _ Options) (string, error) {
	if err := fsutil.EnsureDir(filepath.Dir(destPath)); err != nil {
		return "", fmt.Errorf("create input directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", sourceURL, resp.StatusCode)
	}

	tmpPath := destPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("stream download: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close download file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename download into place: %w", err)
	}

	return titleFromURL(sourceURL), nil
}

func titleFromURL(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	base := filepath.Base(u.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsDirectMediaURL reports whether a URL is a plain http(s) mp4 that can be
// streamed directly; everything else needs an extractor.
func IsDirectMediaURL(sourceURL string) bool {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".mp4")
}

var _ Downloader = (*DirectHTTP)(nil)
