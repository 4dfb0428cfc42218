package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/textutil"
)

// YtDlp drives the yt-dlp CLI for sources that need an extractor (spaces,
// streaming pages, anything that is not a bare media file).
type YtDlp struct {
	binaryPath string
}

// NewYtDlp creates the adapter. binaryPath defaults to "yt-dlp".
func NewYtDlp(binaryPath string) *YtDlp {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlp{binaryPath: binaryPath}
}

// Download implements Downloader. The media lands in a scratch directory,
// the largest produced file is taken as the result and moved to destPath.
func (y *YtDlp) Download(ctx context.Context, sourceURL, destPath string, opts Options) (string, error) {
	if err := fsutil.EnsureDir(filepath.Dir(destPath)); err != nil {
		return "", fmt.Errorf("create input directory: %w", err)
	}

	title, err := y.probeTitle(ctx, sourceURL, opts)
	if err != nil {
		// Title probing is best-effort; the download itself decides success.
		title = ""
	}

	scratch, err := os.MkdirTemp(filepath.Dir(destPath), "ytdlp-")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	args := []string{
		"--no-playlist",
		"--remux-video", "mp4",
		"-o", filepath.Join(scratch, "%(id)s.%(ext)s"),
	}
	if opts.CookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", opts.CookiesFromBrowser)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, y.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp: %w, stderr: %s", err, tail(stderr.String()))
	}

	produced, err := largestFile(scratch)
	if err != nil {
		return "", err
	}
	if err := fsutil.CopyFile(produced, destPath); err != nil {
		return "", fmt.Errorf("move downloaded media: %w", err)
	}

	if title == "" {
		title = textutil.SafePathComponent(strings.TrimSuffix(filepath.Base(produced), filepath.Ext(produced)), 80)
	}
	return title, nil
}

func (y *YtDlp) probeTitle(ctx context.Context, sourceURL string, opts Options) (string, error) {
	args := []string{"-J", "--no-playlist"}
	if opts.CookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", opts.CookiesFromBrowser)
	}
	args = append(args, sourceURL)

	out, err := exec.CommandContext(ctx, y.binaryPath, args...).Output()
	if err != nil {
		return "", err
	}

	var meta struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(out, &meta); err != nil {
		return "", err
	}
	return meta.Title, nil
}

func largestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan downloads: %w", err)
	}

	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, e.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("yt-dlp produced no media files")
	}
	return best, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 500
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}

var _ Downloader = (*YtDlp)(nil)
