package extractor

import (
	"context"
	"errors"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
)

var (
	// ErrExtractionFailed is returned when the extractor exits unsuccessfully.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrInvalidOutput is returned when the extractor output cannot be parsed.
	ErrInvalidOutput = errors.New("invalid extractor output")

	// ErrOutputMissing is returned when a download reports success but no file exists.
	ErrOutputMissing = errors.New("downloaded file not found")
)

// Options controls a metadata extraction.
type Options struct {
	// Format is a format selector such as "best". Empty leaves the extractor default.
	Format string
	// Flat lists playlist entries without resolving each one.
	Flat bool
	// PlaylistEnd stops listing after this many entries. Zero means no limit.
	PlaylistEnd int
}

// DownloadOptions controls a media download.
type DownloadOptions struct {
	// Format is a format selector such as "bestaudio/best".
	Format string
}

// Extractor defines the interface for resolving and downloading media.
// Implementations wrap an external extraction tool.
type Extractor interface {
	// Extract resolves metadata for a URL or search expression without downloading.
	Extract(ctx context.Context, target string, opts Options) (*model.VideoInfo, error)

	// Download fetches the media into outputDir and returns the path of the written file.
	// The output directory must exist before calling this method.
	Download(ctx context.Context, url, outputDir string, opts DownloadOptions) (string, error)
}
