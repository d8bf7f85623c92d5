package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
)

// YtDlpConfig holds configuration for the yt-dlp extractor.
type YtDlpConfig struct {
	// BinaryPath is the path to the yt-dlp binary.
	// If empty, "yt-dlp" will be used (assumes it's in PATH).
	BinaryPath string

	// Timeout bounds a single yt-dlp invocation. Zero disables the limit.
	Timeout time.Duration

	// CookiesFile is a Netscape cookie file passed with --cookies. Optional.
	CookiesFile string

	// OutputTemplate is the file name template for downloads, relative to the output directory.
	// Default: %(id)s.%(ext)s
	OutputTemplate string
}

// DefaultYtDlpConfig returns a YtDlpConfig with production-ready defaults.
func DefaultYtDlpConfig() YtDlpConfig {
	return YtDlpConfig{
		BinaryPath:     "yt-dlp",
		Timeout:        2 * time.Minute,
		OutputTemplate: "%(id)s.%(ext)s",
	}
}

// YtDlp implements Extractor using the yt-dlp CLI.
type YtDlp struct {
	config YtDlpConfig
	runner commandRunner
}

// Compile-time verification that YtDlp implements Extractor.
var _ Extractor = (*YtDlp)(nil)

// NewYtDlp creates a new yt-dlp based extractor.
func NewYtDlp(cfg YtDlpConfig) *YtDlp {
	return newYtDlpWithRunner(cfg, execRunner{})
}

// newYtDlpWithRunner creates a YtDlp with a given commandRunner.
// This is used for dependency injection in tests.
func newYtDlpWithRunner(cfg YtDlpConfig, runner commandRunner) *YtDlp {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if cfg.OutputTemplate == "" {
		cfg.OutputTemplate = "%(id)s.%(ext)s"
	}
	return &YtDlp{config: cfg, runner: runner}
}

// ytdlpInfo mirrors the subset of the yt-dlp info dict used here.
type ytdlpInfo struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Uploader   string            `json:"uploader"`
	Duration   float64           `json:"duration"`
	ViewCount  int64             `json:"view_count"`
	Thumbnail  string            `json:"thumbnail"`
	WebpageURL string            `json:"webpage_url"`
	URL        string            `json:"url"`
	Formats    []json.RawMessage `json:"formats"`
	Entries    []json.RawMessage `json:"entries"`
}

// Extract runs yt-dlp in single-JSON mode and parses the info dict.
func (y *YtDlp) Extract(ctx context.Context, target string, opts Options) (*model.VideoInfo, error) {
	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	out, err := y.runner.Run(ctx, y.config.BinaryPath, y.buildExtractArgs(target, opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	return &model.VideoInfo{
		ID:         info.ID,
		Title:      info.Title,
		Uploader:   info.Uploader,
		Duration:   info.Duration,
		ViewCount:  info.ViewCount,
		Thumbnail:  info.Thumbnail,
		WebpageURL: info.WebpageURL,
		StreamURL:  info.URL,
		Formats:    info.Formats,
		Entries:    info.Entries,
	}, nil
}

// Download runs yt-dlp to fetch the media and returns the final file path.
func (y *YtDlp) Download(ctx context.Context, url, outputDir string, opts DownloadOptions) (string, error) {
	if err := validateOutputDir(outputDir); err != nil {
		return "", err
	}

	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	out, err := y.runner.Run(ctx, y.config.BinaryPath, y.buildDownloadArgs(url, outputDir, opts))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	path := lastLine(string(out))
	if path == "" {
		return "", ErrOutputMissing
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}

	return path, nil
}

// buildExtractArgs constructs the yt-dlp arguments for metadata extraction.
func (y *YtDlp) buildExtractArgs(target string, opts Options) []string {
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--skip-download",
	}
	if opts.Flat {
		args = append(args, "--flat-playlist")
	}
	if opts.PlaylistEnd > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(opts.PlaylistEnd))
	}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	args = append(args, y.cookieArgs()...)

	// "--" keeps a caller-supplied target from being parsed as an option.
	return append(args, "--", target)
}

// buildDownloadArgs constructs the yt-dlp arguments for a download.
func (y *YtDlp) buildDownloadArgs(url, outputDir string, opts DownloadOptions) []string {
	args := []string{
		"--no-warnings",
		"--no-progress",
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", filepath.Join(outputDir, y.config.OutputTemplate),
	}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	args = append(args, y.cookieArgs()...)

	return append(args, "--", url)
}

func (y *YtDlp) cookieArgs() []string {
	if y.config.CookiesFile == "" {
		return nil
	}
	return []string{"--cookies", y.config.CookiesFile}
}

func (y *YtDlp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, y.config.Timeout)
}

// validateOutputDir checks if the output directory exists.
func validateOutputDir(outputDir string) error {
	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", outputDir)
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", outputDir)
	}

	return nil
}

// SearchTarget builds the yt-dlp search expression for a query.
func SearchTarget(query string, limit int) string {
	return fmt.Sprintf("ytsearch%d:%s", limit, strings.TrimSpace(query))
}

// TrendingTarget builds the trending feed URL for a region.
func TrendingTarget(region string) string {
	return "https://www.youtube.com/feed/trending?gl=" + region
}
