package usecase

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
	"github.com/hszk-dev/tubeproxy/internal/extractor"
	"github.com/hszk-dev/tubeproxy/internal/transcoder"
)

// mockExtractor provides a configurable mock for extractor.Extractor.
type mockExtractor struct {
	extractFn  func(ctx context.Context, target string, opts extractor.Options) (*model.VideoInfo, error)
	downloadFn func(ctx context.Context, url, outputDir string, opts extractor.DownloadOptions) (string, error)

	mu          sync.Mutex
	lastTarget  string
	lastOptions extractor.Options
}

func (m *mockExtractor) Extract(ctx context.Context, target string, opts extractor.Options) (*model.VideoInfo, error) {
	m.mu.Lock()
	m.lastTarget = target
	m.lastOptions = opts
	m.mu.Unlock()

	if m.extractFn != nil {
		return m.extractFn(ctx, target, opts)
	}
	return &model.VideoInfo{}, nil
}

func (m *mockExtractor) Download(ctx context.Context, url, outputDir string, opts extractor.DownloadOptions) (string, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, url, outputDir, opts)
	}
	p := filepath.Join(outputDir, "video.mp4")
	if err := os.WriteFile(p, []byte("media"), 0644); err != nil {
		return "", err
	}
	return p, nil
}

// mockTranscoder provides a configurable mock for transcoder.Transcoder.
type mockTranscoder struct {
	extractAudioFn func(ctx context.Context, inputPath, outputDir string) (*transcoder.AudioOutput, error)
}

func (m *mockTranscoder) ExtractAudio(ctx context.Context, inputPath, outputDir string) (*transcoder.AudioOutput, error) {
	if m.extractAudioFn != nil {
		return m.extractAudioFn(ctx, inputPath, outputDir)
	}
	p := filepath.Join(outputDir, "audio.mp3")
	if err := os.WriteFile(p, []byte("audio"), 0644); err != nil {
		return nil, err
	}
	return &transcoder.AudioOutput{Path: p, ContentType: "audio/mpeg"}, nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	uploadFn                       func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	generatePresignedDownloadURLFn func(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error) {
	if m.generatePresignedDownloadURLFn != nil {
		return m.generatePresignedDownloadURLFn(ctx, key, fileName, expiry)
	}
	return "http://example.com/download", nil
}

// mockMediaService is a mock implementation of MediaService for testing.
type mockMediaService struct {
	getInfoFn      func(ctx context.Context, url string) (*model.VideoInfo, error)
	searchFn       func(ctx context.Context, query string, limit int) ([]json.RawMessage, error)
	trendingFn     func(ctx context.Context, region string) ([]json.RawMessage, error)
	playFn         func(ctx context.Context, url string) (*model.StreamResult, error)
	downloadFileFn func(ctx context.Context, input DownloadInput) (*DownloadOutput, error)

	getInfoCount atomic.Int32
	playCount    atomic.Int32
}

func (m *mockMediaService) GetInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
	m.getInfoCount.Add(1)
	if m.getInfoFn != nil {
		return m.getInfoFn(ctx, url)
	}
	return nil, nil
}

func (m *mockMediaService) Search(ctx context.Context, query string, limit int) ([]json.RawMessage, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockMediaService) Trending(ctx context.Context, region string) ([]json.RawMessage, error) {
	if m.trendingFn != nil {
		return m.trendingFn(ctx, region)
	}
	return nil, nil
}

func (m *mockMediaService) Play(ctx context.Context, url string) (*model.StreamResult, error) {
	m.playCount.Add(1)
	if m.playFn != nil {
		return m.playFn(ctx, url)
	}
	return nil, nil
}

func (m *mockMediaService) DownloadFile(ctx context.Context, input DownloadInput) (*DownloadOutput, error) {
	if m.downloadFileFn != nil {
		return m.downloadFileFn(ctx, input)
	}
	return nil, nil
}

// mockInfoCache is a mock implementation of InfoCache for testing.
type mockInfoCache struct {
	mu    sync.RWMutex
	data  map[string]*model.VideoInfo
	ttls  map[string]time.Duration
	getFn func(ctx context.Context, url string) (*model.VideoInfo, error)
	setFn func(ctx context.Context, url string, info *model.VideoInfo, ttl time.Duration) error
}

func newMockInfoCache() *mockInfoCache {
	return &mockInfoCache{
		data: make(map[string]*model.VideoInfo),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockInfoCache) Get(ctx context.Context, url string) (*model.VideoInfo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, url)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[url], nil
}

func (m *mockInfoCache) Set(ctx context.Context, url string, info *model.VideoInfo, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, url, info, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[url] = info
	m.ttls[url] = ttl
	return nil
}
