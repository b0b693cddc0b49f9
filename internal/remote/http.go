package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
)

// HTTPClient talks JSON to a managed record backend over HTTP. Change
// notifications are approximated by polling the backend's change cursor; the
// real platform push channel is owned by the backend, not by this core.
type HTTPClient struct {
	baseUrl string
	// custom http client so we don't hang indefinitely on a slow backend
	httpClient *http.Client
	log        logger.Logger

	mu     sync.Mutex
	subs   []func()
	cursor int64
}

func NewHTTPClient(baseUrl string, timeout time.Duration, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseUrl:    baseUrl,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("remote"),
	}
}

func (c *HTTPClient) Query(ctx context.Context, q Query) ([]domain.Bookmark, error) {
	params := url.Values{}
	if !q.ModifiedSince.IsZero() {
		params.Set("modifiedSince", strconv.FormatInt(q.ModifiedSince.Unix(), 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	endpoint := c.baseUrl + "/records"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var records []domain.Bookmark
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) Get(ctx context.Context, id string) (domain.Bookmark, error) {
	var record domain.Bookmark
	err := c.doJSON(ctx, http.MethodGet, c.baseUrl+"/records/"+url.PathEscape(id), nil, &record)
	return record, err
}

func (c *HTTPClient) Save(ctx context.Context, bookmark domain.Bookmark) (domain.Bookmark, error) {
	body, err := json.Marshal(bookmark)
	if err != nil {
		return domain.Bookmark{}, err
	}
	var saved domain.Bookmark
	err = c.doJSON(ctx, http.MethodPut, c.baseUrl+"/records/"+url.PathEscape(bookmark.ID), body, &saved)
	return saved, err
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, c.baseUrl+"/records/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Subscribe(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, c.baseUrl+"/health", nil, nil)
}

// StartPolling watches the backend change cursor and fires subscriber
// callbacks whenever it advances. Probe failures are quiet; the connectivity
// monitor owns outage reporting.
func (c *HTTPClient) StartPolling(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.pollChanges(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *HTTPClient) pollChanges(ctx context.Context) {
	var payload struct {
		Cursor int64 `json:"cursor"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseUrl+"/changes", nil, &payload); err != nil {
		c.log.Debug("change poll failed", logger.Error(err))
		return
	}
	c.mu.Lock()
	changed := payload.Cursor > c.cursor
	c.cursor = payload.Cursor
	subs := append([]func(){}, c.subs...)
	c.mu.Unlock()
	if !changed {
		return
	}
	c.log.Debug("remote change cursor advanced", logger.Int64("cursor", payload.Cursor))
	for _, fn := range subs {
		fn()
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.RemoteUnavailableError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.RemoteUnavailableError{
			Op:  method + " " + endpoint,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
