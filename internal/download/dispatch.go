package download

import "context"

// Dispatch routes each URL to the right fetcher: bare media files go over
// plain HTTP, everything else through the extractor.
type Dispatch struct {
	direct    Downloader
	extractor Downloader
}

// NewDispatch wires the two fetchers together.
func NewDispatch(direct, extractor Downloader) *Dispatch {
	return &Dispatch{direct: direct, extractor: extractor}
}

// Download implements Downloader.
func (d *Dispatch) Download(ctx context.Context, sourceURL, destPath string, opts Options) (string, error) {
	if IsDirectMediaURL(sourceURL) {
		return d.direct.Download(ctx, sourceURL, destPath, opts)
	}
	return d.extractor.Download(ctx, sourceURL, destPath, opts)
}

var _ Downloader = (*Dispatch)(nil)
