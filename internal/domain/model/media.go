package model

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// VideoInfo is the metadata the extractor resolves for a source URL.
// Formats and Entries are kept as raw JSON so they can be returned verbatim.
type VideoInfo struct {
	ID         string
	Title      string
	Uploader   string
	Duration   float64
	ViewCount  int64
	Thumbnail  string
	WebpageURL string
	// StreamURL is the direct media URL of the selected format, if any.
	StreamURL string
	Formats   []json.RawMessage
	Entries   []json.RawMessage
}

// StreamResult is the payload cached for stream lookups.
type StreamResult struct {
	Title     string
	StreamURL string
}

// DownloadFormat selects what /download/file produces.
type DownloadFormat string

const (
	DownloadFormatVideo DownloadFormat = "video"
	DownloadFormatAudio DownloadFormat = "audio"
)

func (f DownloadFormat) IsValid() bool {
	switch f {
	case DownloadFormatVideo, DownloadFormatAudio:
		return true
	default:
		return false
	}
}

func (f DownloadFormat) String() string {
	return string(f)
}

// MediaFile describes a downloaded file ready to be served.
type MediaFile struct {
	// Path is the local path of the file. Empty when the file was archived.
	Path        string
	FileName    string
	ContentType string
	// RedirectURL is a presigned URL to an archived copy, if any.
	RedirectURL string
}

var (
	ErrEmptyURL              = errors.New("url is required")
	ErrEmptyQuery            = errors.New("search query is required")
	ErrInvalidLimit          = errors.New("limit must be between 1 and 50")
	ErrInvalidRegion         = errors.New("region must be a two-letter country code")
	ErrInvalidDownloadFormat = errors.New("format must be video or audio")
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
	DefaultRegion      = "US"
)

var regionPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// ValidateSourceURL checks that a source URL was supplied.
// The URL is otherwise passed to the extractor untouched.
func ValidateSourceURL(url string) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}
	return nil
}

// ValidateSearch checks a search query and result limit.
func ValidateSearch(query string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	if limit < 1 || limit > MaxSearchLimit {
		return ErrInvalidLimit
	}
	return nil
}

// NormalizeRegion validates a trending region and upper-cases it.
func NormalizeRegion(region string) (string, error) {
	if region == "" {
		return DefaultRegion, nil
	}
	if !regionPattern.MatchString(region) {
		return "", ErrInvalidRegion
	}
	return strings.ToUpper(region), nil
}
