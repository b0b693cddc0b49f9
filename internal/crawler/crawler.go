// Package crawler resolves real page titles for bookmarks that were saved
// without one. Until it succeeds, callers fall back to the URL host.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
)

const maxContentDownloadSizeBytes = 2 * 1024 * 1024

type Crawler struct {
	Store  *repository.Store
	Config domain.Configuration
	Log    logger.Logger
}

// Run fetches titles in small batches on a timer until the context is
// cancelled. Each candidate has a bounded attempt budget so dead pages are
// not hammered forever.
func (crawler *Crawler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(crawler.Config.TitleFetchIntervalSeconds) * time.Second)
	log := crawler.Log.Named("crawler")
	// custom http client so we don't hang indefinitely on foreign servers
	client := &http.Client{
		Timeout: time.Duration(crawler.Config.TitleFetchTimeoutSeconds) * time.Second,
	}
	log.Info("starting title crawler")
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				crawler.fetchMissingTitles(client, log)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (crawler *Crawler) fetchMissingTitles(client *http.Client, log logger.Logger) {
	candidates, err := crawler.Store.BookmarksNeedingTitle(
		crawler.Config.MaxTitleFetchAttempts, crawler.Config.MaxTitlesToFetch)
	if err != nil {
		log.Error("listing title candidates failed", logger.Error(err))
		return
	}
	for _, candidate := range candidates {
		title, err := fetchTitle(candidate.URL, client)
		if err != nil || title == "" {
			log.Warn("title fetch failed",
				logger.String("url", candidate.URL),
				logger.Error(err))
			err = crawler.Store.MarkTitleFetchFailed(candidate.ID, candidate.Attempts+1)
		} else {
			log.Info("fetched title",
				logger.String("url", candidate.URL),
				logger.String("title", title))
			err = crawler.Store.SaveFetchedTitle(candidate.ID, title, candidate.Attempts+1)
		}
		if err != nil {
			log.Error("saving crawl result failed", logger.Error(err))
		}
	}
}

func fetchTitle(urlString string, client *http.Client) (string, error) {
	resp, err := client.Get(urlString)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, urlString)
	}
	limitReader := io.LimitReader(resp.Body, maxContentDownloadSizeBytes)
	bodyBytes, err := io.ReadAll(limitReader)
	if err != nil {
		return "", fmt.Errorf("error reading response body from %s: %w", urlString, err)
	}
	realUrl, err := url.Parse(urlString)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), realUrl)
	if err != nil {
		return "", fmt.Errorf("error parsing content from %s: %w", urlString, err)
	}
	return strings.TrimSpace(article.Title), nil
}
