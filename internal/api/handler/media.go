package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/hszk-dev/tubeproxy/internal/domain/model"
	"github.com/hszk-dev/tubeproxy/internal/extractor"
	"github.com/hszk-dev/tubeproxy/internal/transcoder"
	"github.com/hszk-dev/tubeproxy/internal/usecase"
)

// Response types

type InfoResponse struct {
	Title     string            `json:"title"`
	Uploader  string            `json:"uploader"`
	Duration  float64           `json:"duration"`
	Views     int64             `json:"views"`
	Thumbnail string            `json:"thumbnail"`
	Formats   []json.RawMessage `json:"formats"`
	URL       string            `json:"url"`
}

type SearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type TrendingResponse struct {
	Trending []json.RawMessage `json:"trending"`
}

type PlayResponse struct {
	Title     string `json:"title"`
	StreamURL string `json:"stream_url"`
}

// MediaHandler handles media lookup HTTP requests.
type MediaHandler struct {
	svc usecase.MediaService
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(svc usecase.MediaService) *MediaHandler {
	return &MediaHandler{svc: svc}
}

// Info handles GET /download?url=
func (h *MediaHandler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetInfo(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	formats := info.Formats
	if formats == nil {
		formats = []json.RawMessage{}
	}

	JSON(w, http.StatusOK, InfoResponse{
		Title:     info.Title,
		Uploader:  info.Uploader,
		Duration:  info.Duration,
		Views:     info.ViewCount,
		Thumbnail: info.Thumbnail,
		Formats:   formats,
		URL:       info.WebpageURL,
	})
}

// Search handles GET /search?q=&limit=
func (h *MediaHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := model.DefaultSearchLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid_limit", "Limit must be an integer")
			return
		}
		limit = n
	}

	results, err := h.svc.Search(r.Context(), query.Get("q"), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Trending handles GET /trending?region=
func (h *MediaHandler) Trending(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Trending(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, TrendingResponse{Trending: entries})
}

// Play handles GET /play?url=
func (h *MediaHandler) Play(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Play(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, PlayResponse{
		Title:     result.Title,
		StreamURL: result.StreamURL,
	})
}

// DownloadFile handles GET /download/file?url=&format=
// Archived files are answered with a redirect, local files are streamed as an attachment.
func (h *MediaHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	out, err := h.svc.DownloadFile(r.Context(), usecase.DownloadInput{
		URL:    query.Get("url"),
		Format: model.DownloadFormat(query.Get("format")),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	defer out.Cleanup()

	if out.File.RedirectURL != "" {
		http.Redirect(w, r, out.File.RedirectURL, http.StatusFound)
		return
	}

	f, err := os.Open(out.File.Path)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", out.File.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": out.File.FileName,
	}))
	http.ServeContent(w, r, out.File.FileName, stat.ModTime(), f)
}

func (h *MediaHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrEmptyURL):
		Error(w, http.StatusBadRequest, "invalid_url", "URL is required")
	case errors.Is(err, model.ErrEmptyQuery):
		Error(w, http.StatusBadRequest, "invalid_query", "Search query is required")
	case errors.Is(err, model.ErrInvalidLimit):
		Error(w, http.StatusBadRequest, "invalid_limit", "Limit must be between 1 and 50")
	case errors.Is(err, model.ErrInvalidRegion):
		Error(w, http.StatusBadRequest, "invalid_region", "Region must be a two-letter country code")
	case errors.Is(err, model.ErrInvalidDownloadFormat):
		Error(w, http.StatusBadRequest, "invalid_format", "Format must be video or audio")
	case errors.Is(err, usecase.ErrStreamURLMissing):
		Error(w, http.StatusBadRequest, "stream_unavailable", "No direct stream URL is available for this media")
	case errors.Is(err, extractor.ErrOutputMissing):
		Error(w, http.StatusBadRequest, "download_failed", err.Error())
	case errors.Is(err, extractor.ErrExtractionFailed), errors.Is(err, extractor.ErrInvalidOutput):
		Error(w, http.StatusBadRequest, "extraction_failed", err.Error())
	case errors.Is(err, transcoder.ErrTranscodeFailed):
		Error(w, http.StatusBadRequest, "transcode_failed", err.Error())
	default:
		slog.Error("unhandled service error", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
