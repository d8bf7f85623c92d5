package handler

import (
	"net/http"
	"time"
)

type HomeResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	CacheEntries int    `json:"cache_entries"`
}

// StreamCacheSweeper is the part of the stream cache the health check drives.
type StreamCacheSweeper interface {
	SweepStreams(now time.Time) int
	StreamEntries() int
}

// HealthHandler reports liveness and sweeps the stream cache on every probe.
type HealthHandler struct {
	streams StreamCacheSweeper
	now     func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(streams StreamCacheSweeper) *HealthHandler {
	return &HealthHandler{streams: streams, now: time.Now}
}

// Home handles GET /
func Home(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HomeResponse{
		Message: "tubeproxy media API running",
	})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.streams.SweepStreams(h.now())

	JSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		CacheEntries: h.streams.StreamEntries(),
	})
}
