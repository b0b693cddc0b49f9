package domain

import (
	"net/url"
	"strings"
	"time"
)

// Bookmark is the sole entity of the application: a single URL with optional
// title and notes. Soft-deleted bookmarks are kept around as tombstones until
// the purge scheduler garbage-collects them.
type Bookmark struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Title   string    `json:"title,omitempty"`
	Notes   string    `json:"notes,omitempty"`
	Created time.Time `json:"createdAt"`
	Updated time.Time `json:"modifiedAt"`
	Deleted bool      `json:"deleted,omitempty"`
}

// DisplayTitle returns the title to show for a bookmark. A bookmark stored
// without a title falls back to the host of its URL; the title column itself
// stays empty until the crawler resolves a real one.
func (b Bookmark) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	if parsed, err := url.Parse(b.URL); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return b.URL
}

// ValidateURL checks that a bookmark URL is non-empty and parses as an
// absolute http(s) URI with a host.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &ValidationError{Field: "url", Reason: "url must not be empty"}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Reason: "url does not parse: " + err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: "url scheme must be http or https"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "url", Reason: "url has no host"}
	}
	return nil
}

// TitleCandidate is a bookmark stored without a title that the crawler
// should try to resolve one for.
type TitleCandidate struct {
	ID       string
	URL      string
	Attempts int
}

type Configuration struct {
	DbFilename                string
	ServerPort                int
	ServerReadTimeoutSeconds  int
	ServerWriteTimeoutSeconds int
	BaseUrl                   string
	Platform                  string
	SearchPageSize            int
	MaxQueueRetries           int
	SyncIntervalSeconds       int
	StatusDisplaySeconds      int
	TombstoneRetentionDays    int
	PurgeIntervalSeconds      int
	TitleFetchIntervalSeconds int
	TitleFetchTimeoutSeconds  int
	MaxTitleFetchAttempts     int
	MaxTitlesToFetch          int
	RemoteBaseUrl             string
	RemotePollIntervalSeconds int
	LogLevel                  string
}
