package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omprakashjha/URLBookmarks/internal/connectivity"
	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/queue"
	"github.com/omprakashjha/URLBookmarks/internal/remote"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
	syncpkg "github.com/omprakashjha/URLBookmarks/internal/sync"
)

type testServer struct {
	echo         *echo.Echo
	store        *repository.Store
	backend      *remote.Memory
	monitor      *connectivity.Monitor
	queue        *queue.Queue
	orchestrator *syncpkg.Orchestrator
}

func setupTestServer(t *testing.T) *testServer {
	store := &repository.Store{}
	require.NoError(t, store.InitAndVerifyDb(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(store.Close)

	log := logger.NewNop()
	backend := remote.NewMemory()
	monitor := connectivity.NewMonitor(true, log)
	q := queue.New(store, backend, monitor, 3, log)
	orchestrator := syncpkg.New(store, backend, q, monitor, time.Hour, time.Hour, log)

	controller := &Controller{
		Store:        store,
		Queue:        q,
		Monitor:      monitor,
		Remote:       backend,
		Orchestrator: orchestrator,
		Config: domain.Configuration{
			SearchPageSize: 50,
			Platform:       "test",
			BaseUrl:        "http://localhost:1323",
		},
		Log: log,
	}
	return &testServer{
		echo:         BuildEcho(controller),
		store:        store,
		backend:      backend,
		monitor:      monitor,
		queue:        q,
		orchestrator: orchestrator,
	}
}

func (s *testServer) request(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBookmark(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body.Bytes(), &decoded))
	return decoded
}

func TestAddSearchAndDuplicate(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks",
		`{"url":"https://a.example/page","title":"Example","notes":"n"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBookmark(t, rec.Body)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "Example", created["displayTitle"])

	// posting the same URL again hands back the existing record
	rec = s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example/page"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	duplicate := decodeBookmark(t, rec.Body)
	assert.Equal(t, created["id"], duplicate["id"])
	assert.Equal(t, "Example", duplicate["title"])

	rec = s.request(t, http.MethodGet, "/bookmarks?q=example", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 1)

	rec = s.request(t, http.MethodGet, "/bookmarks?q=nothing+matches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAddRejectsInvalidURL(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example","title":"old"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBookmark(t, rec.Body)["id"].(string)

	rec = s.request(t, http.MethodPut, "/bookmarks/"+id, `{"title":"new"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "new", decodeBookmark(t, rec.Body)["title"])

	rec = s.request(t, http.MethodPut, "/bookmarks/no-such-id", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.request(t, http.MethodDelete, "/bookmarks/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.request(t, http.MethodGet, "/bookmarks", "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestOfflineMutationsAreQueued(t *testing.T) {
	s := setupTestServer(t)
	s.monitor.SetOnline(false)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example"}`)
	require.Equal(t, http.StatusCreated, rec.Code, "local write succeeds while offline")

	pending, err := s.queue.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	// nothing reached the backend yet
	records, err := s.backend.Query(context.Background(), remote.Query{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOnlineRemoteFailureIsSurfacedNotQueued(t *testing.T) {
	s := setupTestServer(t)
	s.backend.SetFailing(true)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBookmark(t, rec.Body)
	assert.NotNil(t, body["record"], "the committed local record is still returned")

	pending, err := s.queue.Len()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestExportAndImportRoundTrip(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example","title":"t","notes":"n"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.request(t, http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/json")
	exported := rec.Body.Bytes()
	assert.Contains(t, string(exported), `"version": 1`)

	rec = s.request(t, http.MethodGet, "/export?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")

	// importing the JSON export into a fresh server recreates the record
	fresh := setupTestServer(t)
	var multipartBody bytes.Buffer
	writer := multipart.NewWriter(&multipartBody)
	part, err := writer.CreateFormFile("file", "backup.json")
	require.NoError(t, err)
	_, err = part.Write(exported)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &multipartBody)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	importRec := httptest.NewRecorder()
	fresh.echo.ServeHTTP(importRec, req)
	require.Equal(t, http.StatusOK, importRec.Code, importRec.Body.String())

	var summary map[string]any
	require.NoError(t, json.Unmarshal(importRec.Body.Bytes(), &summary))
	assert.EqualValues(t, 1, summary["imported"])

	rec2 := fresh.request(t, http.MethodGet, "/bookmarks?q=a.example", "")
	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "n", results[0]["notes"])
}

func TestSyncEndpointAndStatus(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.request(t, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "success", status["state"])

	rec = s.request(t, http.MethodGet, "/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConflictWorkflowOverHTTP(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example","title":"local"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBookmark(t, rec.Body)["id"].(string)

	// the backend copy diverges after the local write
	s.backend.Seed(domain.Bookmark{
		ID:      id,
		URL:     "https://a.example",
		Title:   "remote",
		Updated: time.Now().Add(time.Minute),
	})

	rec = s.request(t, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = s.request(t, http.MethodGet, "/conflicts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var conflicts []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflicts))
	require.Len(t, conflicts, 1)

	rec = s.request(t, http.MethodPost, "/conflicts/resolve", `{"all":"keepRemote"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.EqualValues(t, 0, outcome["failed"])

	rec = s.request(t, http.MethodGet, "/bookmarks?q=a.example", "")
	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "remote", results[0]["title"])
}

func TestFeed(t *testing.T) {
	s := setupTestServer(t)

	rec := s.request(t, http.MethodPost, "/bookmarks", `{"url":"https://a.example","title":"Feed Me"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.request(t, http.MethodGet, "/feed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/rss+xml")
	assert.Contains(t, rec.Body.String(), "<rss")
	assert.Contains(t, rec.Body.String(), "Feed Me")
}
