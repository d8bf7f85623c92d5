package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hszk-dev/tubeproxy/internal/domain/model"
	"github.com/hszk-dev/tubeproxy/internal/extractor"
	"github.com/hszk-dev/tubeproxy/internal/transcoder"
	"github.com/hszk-dev/tubeproxy/internal/usecase"
)

// Mock MediaService

type mockMediaService struct {
	getInfoFn      func(ctx context.Context, url string) (*model.VideoInfo, error)
	searchFn       func(ctx context.Context, query string, limit int) ([]json.RawMessage, error)
	trendingFn     func(ctx context.Context, region string) ([]json.RawMessage, error)
	playFn         func(ctx context.Context, url string) (*model.StreamResult, error)
	downloadFileFn func(ctx context.Context, input usecase.DownloadInput) (*usecase.DownloadOutput, error)
}

func (m *mockMediaService) GetInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
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
	if m.playFn != nil {
		return m.playFn(ctx, url)
	}
	return nil, nil
}

func (m *mockMediaService) DownloadFile(ctx context.Context, input usecase.DownloadInput) (*usecase.DownloadOutput, error) {
	if m.downloadFileFn != nil {
		return m.downloadFileFn(ctx, input)
	}
	return nil, nil
}

func newTestRouter(svc usecase.MediaService) http.Handler {
	h := NewMediaHandler(svc)
	r := chi.NewRouter()
	r.Get("/download", h.Info)
	r.Get("/download/file", h.DownloadFile)
	r.Get("/search", h.Search)
	r.Get("/trending", h.Trending)
	r.Get("/play", h.Play)
	return r
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	return resp
}

func TestMediaHandler_Info(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(m *mockMediaService)
		wantStatusCode int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "successful lookup",
			target: "/download?url=https%3A%2F%2Fyoutu.be%2Fabc",
			setupMock: func(m *mockMediaService) {
				m.getInfoFn = func(ctx context.Context, url string) (*model.VideoInfo, error) {
					if url != "https://youtu.be/abc" {
						t.Errorf("url = %v, want https://youtu.be/abc", url)
					}
					return &model.VideoInfo{
						Title:      "Test Video",
						Uploader:   "Channel",
						Duration:   212,
						ViewCount:  1000,
						Thumbnail:  "https://i.ytimg.com/t.jpg",
						WebpageURL: "https://www.youtube.com/watch?v=abc",
						Formats:    []json.RawMessage{json.RawMessage(`{"format_id":"18"}`)},
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var resp map[string]json.RawMessage
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				for _, key := range []string{"title", "uploader", "duration", "views", "thumbnail", "formats", "url"} {
					if _, ok := resp[key]; !ok {
						t.Errorf("response missing key %q", key)
					}
				}
				if string(resp["views"]) != "1000" {
					t.Errorf("views = %s, want 1000", resp["views"])
				}
				if string(resp["formats"]) != `[{"format_id":"18"}]` {
					t.Errorf("formats = %s, want verbatim", resp["formats"])
				}
			},
		},
		{
			name:   "no formats renders empty list",
			target: "/download?url=x",
			setupMock: func(m *mockMediaService) {
				m.getInfoFn = func(ctx context.Context, url string) (*model.VideoInfo, error) {
					return &model.VideoInfo{Title: "t"}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				if !strings.Contains(string(body), `"formats":[]`) {
					t.Errorf("body = %s, want empty formats list", body)
				}
			},
		},
		{
			name:   "missing url",
			target: "/download",
			setupMock: func(m *mockMediaService) {
				m.getInfoFn = func(ctx context.Context, url string) (*model.VideoInfo, error) {
					return nil, model.ErrEmptyURL
				}
			},
			wantStatusCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, body []byte) {
				if resp := decodeError(t, body); resp.Error != "invalid_url" {
					t.Errorf("error = %v, want invalid_url", resp.Error)
				}
			},
		},
		{
			name:   "extractor failure",
			target: "/download?url=https://example.com",
			setupMock: func(m *mockMediaService) {
				m.getInfoFn = func(ctx context.Context, url string) (*model.VideoInfo, error) {
					return nil, fmt.Errorf("extract info: %w: ERROR: Unsupported URL", extractor.ErrExtractionFailed)
				}
			},
			wantStatusCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				if resp.Error != "extraction_failed" {
					t.Errorf("error = %v, want extraction_failed", resp.Error)
				}
				if !strings.Contains(resp.Message, "Unsupported URL") {
					t.Errorf("message = %v, want extractor detail", resp.Message)
				}
			},
		},
		{
			name:   "unexpected error",
			target: "/download?url=x",
			setupMock: func(m *mockMediaService) {
				m.getInfoFn = func(ctx context.Context, url string) (*model.VideoInfo, error) {
					return nil, errors.New("boom")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &mockMediaService{}
			tt.setupMock(mockSvc)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			newTestRouter(mockSvc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatusCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %v, want application/json", ct)
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, rec.Body.Bytes())
			}
		})
	}
}

func TestMediaHandler_Search(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		wantQuery      string
		wantLimit      int
		serviceErr     error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "default limit",
			target:         "/search?q=lofi",
			wantQuery:      "lofi",
			wantLimit:      5,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "explicit limit",
			target:         "/search?q=lofi&limit=12",
			wantQuery:      "lofi",
			wantLimit:      12,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "non-numeric limit",
			target:         "/search?q=lofi&limit=ten",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid_limit",
		},
		{
			name:           "limit out of range",
			target:         "/search?q=lofi&limit=99",
			wantQuery:      "lofi",
			wantLimit:      99,
			serviceErr:     model.ErrInvalidLimit,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid_limit",
		},
		{
			name:           "missing query",
			target:         "/search",
			wantLimit:      5,
			serviceErr:     model.ErrEmptyQuery,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid_query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mockSvc := &mockMediaService{
				searchFn: func(ctx context.Context, query string, limit int) ([]json.RawMessage, error) {
					called = true
					if query != tt.wantQuery || limit != tt.wantLimit {
						t.Errorf("Search(%q, %d), want (%q, %d)", query, limit, tt.wantQuery, tt.wantLimit)
					}
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return []json.RawMessage{json.RawMessage(`{"id":"a"}`)}, nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			newTestRouter(mockSvc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatusCode)
			}

			if tt.wantError != "" {
				if resp := decodeError(t, rec.Body.Bytes()); resp.Error != tt.wantError {
					t.Errorf("error = %v, want %v", resp.Error, tt.wantError)
				}
				return
			}

			if !called {
				t.Fatal("service was not called")
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"results":[{"id":"a"}]}` {
				t.Errorf("body = %s", got)
			}
		})
	}
}

func TestMediaHandler_Trending(t *testing.T) {
	var gotRegion string
	mockSvc := &mockMediaService{
		trendingFn: func(ctx context.Context, region string) ([]json.RawMessage, error) {
			gotRegion = region
			if region == "USA" {
				return nil, model.ErrInvalidRegion
			}
			return []json.RawMessage{json.RawMessage(`{"id":"t1"}`)}, nil
		},
	}
	router := newTestRouter(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/trending?region=gb", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if gotRegion != "gb" {
		t.Errorf("region forwarded = %q, want gb", gotRegion)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"trending":[{"id":"t1"}]}` {
		t.Errorf("body = %s", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/trending?region=USA", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Error != "invalid_region" {
		t.Errorf("error = %v, want invalid_region", resp.Error)
	}
}

func TestMediaHandler_Play(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "successful lookup",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing stream url",
			serviceErr:     usecase.ErrStreamURLMissing,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "stream_unavailable",
		},
		{
			name:           "unparseable extractor output",
			serviceErr:     fmt.Errorf("extract stream: %w", extractor.ErrInvalidOutput),
			wantStatusCode: http.StatusBadRequest,
			wantError:      "extraction_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &mockMediaService{
				playFn: func(ctx context.Context, url string) (*model.StreamResult, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.StreamResult{Title: "Song", StreamURL: "https://cdn/v?a=1&b=2"}, nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/play?url=https://youtu.be/x", nil)
			rec := httptest.NewRecorder()

			newTestRouter(mockSvc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatusCode)
			}

			if tt.wantError != "" {
				if resp := decodeError(t, rec.Body.Bytes()); resp.Error != tt.wantError {
					t.Errorf("error = %v, want %v", resp.Error, tt.wantError)
				}
				return
			}

			// '&' must not be HTML-escaped in stream URLs
			want := `{"title":"Song","stream_url":"https://cdn/v?a=1&b=2"}`
			if got := strings.TrimSpace(rec.Body.String()); got != want {
				t.Errorf("body = %s, want %s", got, want)
			}
		})
	}
}

func TestMediaHandler_DownloadFile_Local(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc.mp3")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cleaned := false
	var gotInput usecase.DownloadInput
	mockSvc := &mockMediaService{
		downloadFileFn: func(ctx context.Context, input usecase.DownloadInput) (*usecase.DownloadOutput, error) {
			gotInput = input
			return &usecase.DownloadOutput{
				File: &model.MediaFile{
					Path:        path,
					FileName:    "abc.mp3",
					ContentType: "audio/mpeg",
				},
				Cleanup: func() { cleaned = true },
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/download/file?url=https://youtu.be/x&format=audio", nil)
	rec := httptest.NewRecorder()

	newTestRouter(mockSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if gotInput.URL != "https://youtu.be/x" || gotInput.Format != model.DownloadFormatAudio {
		t.Errorf("input = %+v", gotInput)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %v, want audio/mpeg", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=abc.mp3" {
		t.Errorf("Content-Disposition = %v", cd)
	}
	if rec.Body.String() != "audio-bytes" {
		t.Errorf("body = %q, want file content", rec.Body.String())
	}
	if !cleaned {
		t.Error("Cleanup was not called")
	}
}

func TestMediaHandler_DownloadFile_Redirect(t *testing.T) {
	cleaned := false
	mockSvc := &mockMediaService{
		downloadFileFn: func(ctx context.Context, input usecase.DownloadInput) (*usecase.DownloadOutput, error) {
			return &usecase.DownloadOutput{
				File: &model.MediaFile{
					FileName:    "abc.mp4",
					ContentType: "video/mp4",
					RedirectURL: "https://minio.local/media/downloads/abc.mp4?X-Amz-Signature=s",
				},
				Cleanup: func() { cleaned = true },
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/download/file?url=https://youtu.be/x", nil)
	rec := httptest.NewRecorder()

	newTestRouter(mockSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status code = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://minio.local/media/downloads/abc.mp4?X-Amz-Signature=s" {
		t.Errorf("Location = %v", loc)
	}
	if !cleaned {
		t.Error("Cleanup was not called")
	}
}

func TestMediaHandler_DownloadFile_Errors(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		wantStatusCode int
		wantError      string
	}{
		{"invalid format", model.ErrInvalidDownloadFormat, http.StatusBadRequest, "invalid_format"},
		{"missing url", model.ErrEmptyURL, http.StatusBadRequest, "invalid_url"},
		{"file missing after download", fmt.Errorf("download: %w", extractor.ErrOutputMissing), http.StatusBadRequest, "download_failed"},
		{"download failed", fmt.Errorf("download: %w", extractor.ErrExtractionFailed), http.StatusBadRequest, "extraction_failed"},
		{"transcode failed", fmt.Errorf("extract audio: %w", transcoder.ErrTranscodeFailed), http.StatusBadRequest, "transcode_failed"},
		{"storage failure", errors.New("archive download: connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &mockMediaService{
				downloadFileFn: func(ctx context.Context, input usecase.DownloadInput) (*usecase.DownloadOutput, error) {
					return nil, tt.serviceErr
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/download/file?url=x&format=video", nil)
			rec := httptest.NewRecorder()

			newTestRouter(mockSvc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatusCode)
			}
			if resp := decodeError(t, rec.Body.Bytes()); resp.Error != tt.wantError {
				t.Errorf("error = %v, want %v", resp.Error, tt.wantError)
			}
		})
	}
}
