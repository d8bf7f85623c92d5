package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/tubeproxy/internal/domain/model"
	"github.com/hszk-dev/tubeproxy/internal/domain/repository"
	"github.com/hszk-dev/tubeproxy/internal/extractor"
	"github.com/hszk-dev/tubeproxy/internal/infrastructure/metrics"
	"github.com/hszk-dev/tubeproxy/internal/transcoder"
)

// ErrStreamURLMissing is returned when the extractor resolves a video without a direct stream URL.
var ErrStreamURLMissing = errors.New("no stream url for the selected format")

const (
	// InfoFormatLimit is the number of format descriptors returned by GetInfo.
	InfoFormatLimit = 5
	// TrendingLimit is the number of entries returned by Trending.
	TrendingLimit = 10

	playFormat          = "best"
	videoDownloadFormat = "best"
	audioDownloadFormat = "bestaudio/best"
)

// DownloadInput contains the input parameters for downloading a file.
type DownloadInput struct {
	URL    string
	Format model.DownloadFormat
}

// DownloadOutput contains a downloaded file ready to be served.
type DownloadOutput struct {
	File *model.MediaFile
	// Cleanup removes the local work directory. Call it once the file has been served.
	Cleanup func()
}

// MediaService defines the interface for media lookup operations.
type MediaService interface {
	// GetInfo resolves full metadata for a URL. At most InfoFormatLimit formats are kept.
	GetInfo(ctx context.Context, url string) (*model.VideoInfo, error)

	// Search runs a flat search and returns the raw result entries.
	Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error)

	// Trending returns up to TrendingLimit raw entries of the trending feed for a region.
	Trending(ctx context.Context, region string) ([]json.RawMessage, error)

	// Play resolves the title and direct stream URL for a URL.
	Play(ctx context.Context, url string) (*model.StreamResult, error)

	// DownloadFile downloads a URL to local disk, converting to audio if requested.
	// The caller must invoke DownloadOutput.Cleanup when done.
	DownloadFile(ctx context.Context, input DownloadInput) (*DownloadOutput, error)
}

// MediaServiceConfig holds configuration for MediaService.
type MediaServiceConfig struct {
	// TempDir is the base directory for per-request download work directories.
	TempDir string
	// PresignExpiry is the lifetime of presigned URLs for archived downloads.
	PresignExpiry time.Duration
}

// DefaultMediaServiceConfig returns the default configuration.
func DefaultMediaServiceConfig() MediaServiceConfig {
	return MediaServiceConfig{
		TempDir:       os.TempDir(),
		PresignExpiry: time.Hour,
	}
}

type mediaService struct {
	extractor  extractor.Extractor
	transcoder transcoder.Transcoder
	storage    repository.ObjectStorage

	tempDir       string
	presignExpiry time.Duration
}

// NewMediaService creates a new MediaService instance.
// storage may be nil, in which case downloads are served from local disk.
func NewMediaService(
	ext extractor.Extractor,
	tc transcoder.Transcoder,
	storage repository.ObjectStorage,
	cfg MediaServiceConfig,
) MediaService {
	return &mediaService{
		extractor:     ext,
		transcoder:    tc,
		storage:       storage,
		tempDir:       cfg.TempDir,
		presignExpiry: cfg.PresignExpiry,
	}
}

// GetInfo resolves metadata without downloading.
func (s *mediaService) GetInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
	if err := model.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := s.extractor.Extract(ctx, url, extractor.Options{})
	observeExtractor(metrics.ExtractorOpInfo, start, err)
	if err != nil {
		return nil, fmt.Errorf("extract info: %w", err)
	}

	if len(info.Formats) > InfoFormatLimit {
		info.Formats = info.Formats[:InfoFormatLimit]
	}
	info.Entries = nil

	return info, nil
}

// Search runs a flat search through the extractor's search prefix.
func (s *mediaService) Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error) {
	if err := model.ValidateSearch(query, limit); err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := s.extractor.Extract(ctx, extractor.SearchTarget(query, limit), extractor.Options{Flat: true})
	observeExtractor(metrics.ExtractorOpSearch, start, err)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return nonNilEntries(info.Entries), nil
}

// Trending lists the trending feed of a region.
func (s *mediaService) Trending(ctx context.Context, region string) ([]json.RawMessage, error) {
	region, err := model.NormalizeRegion(region)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := s.extractor.Extract(ctx, extractor.TrendingTarget(region), extractor.Options{
		Flat:        true,
		PlaylistEnd: TrendingLimit,
	})
	observeExtractor(metrics.ExtractorOpTrending, start, err)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}

	entries := info.Entries
	if len(entries) > TrendingLimit {
		entries = entries[:TrendingLimit]
	}
	return nonNilEntries(entries), nil
}

// Play resolves the best single-file format and its stream URL.
func (s *mediaService) Play(ctx context.Context, url string) (*model.StreamResult, error) {
	if err := model.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := s.extractor.Extract(ctx, url, extractor.Options{Format: playFormat})
	observeExtractor(metrics.ExtractorOpPlay, start, err)
	if err != nil {
		return nil, fmt.Errorf("extract stream: %w", err)
	}

	if info.StreamURL == "" {
		return nil, ErrStreamURLMissing
	}

	return &model.StreamResult{
		Title:     info.Title,
		StreamURL: info.StreamURL,
	}, nil
}

// DownloadFile downloads into a fresh work directory and optionally archives the result.
// When object storage is configured the local copy is removed before returning
// and the output carries a presigned redirect URL instead of a path.
func (s *mediaService) DownloadFile(ctx context.Context, input DownloadInput) (*DownloadOutput, error) {
	if err := model.ValidateSourceURL(input.URL); err != nil {
		return nil, err
	}

	format := input.Format
	if format == "" {
		format = model.DownloadFormatVideo
	}
	if !format.IsValid() {
		return nil, model.ErrInvalidDownloadFormat
	}

	workID := uuid.New()
	workDir, err := s.createWorkDir(workID)
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	cleanup := func() { s.cleanup(workDir) }

	file, err := s.fetch(ctx, input.URL, format, workDir)
	if err != nil {
		cleanup()
		return nil, err
	}

	if s.storage == nil {
		return &DownloadOutput{File: file, Cleanup: cleanup}, nil
	}

	defer cleanup()

	key := path.Join("downloads", workID.String(), file.FileName)
	if err := s.uploadFile(ctx, file.Path, key, file.ContentType); err != nil {
		return nil, fmt.Errorf("archive download: %w", err)
	}

	redirectURL, err := s.storage.GeneratePresignedDownloadURL(ctx, key, file.FileName, s.presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate presigned download URL: %w", err)
	}

	file.Path = ""
	file.RedirectURL = redirectURL

	return &DownloadOutput{File: file, Cleanup: func() {}}, nil
}

// fetch downloads the media and, for audio requests, re-encodes it.
func (s *mediaService) fetch(ctx context.Context, url string, format model.DownloadFormat, workDir string) (*model.MediaFile, error) {
	selector := videoDownloadFormat
	if format == model.DownloadFormatAudio {
		selector = audioDownloadFormat
	}

	start := time.Now()
	localPath, err := s.extractor.Download(ctx, url, workDir, extractor.DownloadOptions{Format: selector})
	observeExtractor(metrics.ExtractorOpDownload, start, err)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	contentType := contentTypeForPath(localPath)

	if format == model.DownloadFormatAudio {
		audioDir := filepath.Join(workDir, "audio")
		if err := os.MkdirAll(audioDir, 0755); err != nil {
			return nil, fmt.Errorf("create audio directory: %w", err)
		}

		start = time.Now()
		out, err := s.transcoder.ExtractAudio(ctx, localPath, audioDir)
		observeExtractor(metrics.ExtractorOpTranscode, start, err)
		if err != nil {
			return nil, fmt.Errorf("extract audio: %w", err)
		}
		localPath = out.Path
		contentType = out.ContentType
	}

	return &model.MediaFile{
		Path:        localPath,
		FileName:    filepath.Base(localPath),
		ContentType: contentType,
	}, nil
}

// createWorkDir creates a temporary directory for a single download.
func (s *mediaService) createWorkDir(id uuid.UUID) (string, error) {
	workDir := filepath.Join(s.tempDir, "tubeproxy", id.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	return workDir, nil
}

// cleanup removes the temporary working directory.
func (s *mediaService) cleanup(workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		slog.Warn("failed to remove work directory",
			"work_dir", workDir,
			"error", err,
		)
	}
}

// uploadFile uploads a single file to object storage.
func (s *mediaService) uploadFile(ctx context.Context, localPath, key, contentType string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	if err := s.storage.Upload(ctx, key, file, stat.Size(), contentType); err != nil {
		return fmt.Errorf("storage upload: %w", err)
	}

	return nil
}

var mediaContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".opus": "audio/ogg",
	".ogg":  "audio/ogg",
}

// contentTypeForPath guesses a MIME type from the file extension.
func contentTypeForPath(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ct, ok := mediaContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func nonNilEntries(entries []json.RawMessage) []json.RawMessage {
	if entries == nil {
		return []json.RawMessage{}
	}
	return entries
}

// observeExtractor records the outcome and latency of an external tool call.
func observeExtractor(operation string, start time.Time, err error) {
	status := metrics.ExtractorStatusSuccess
	if err != nil {
		status = metrics.ExtractorStatusError
	}
	metrics.ExtractorCallsTotal.WithLabelValues(operation, status).Inc()
	metrics.ExtractorDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
