package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/omprakashjha/URLBookmarks/internal/codec"
	"github.com/omprakashjha/URLBookmarks/internal/connectivity"
	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/queue"
	"github.com/omprakashjha/URLBookmarks/internal/remote"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
	syncpkg "github.com/omprakashjha/URLBookmarks/internal/sync"
)

// Controller exposes the bookmark core over HTTP. It owns no state of its
// own; everything is injected.
type Controller struct {
	Store        *repository.Store
	Queue        *queue.Queue
	Monitor      *connectivity.Monitor
	Remote       remote.Client
	Orchestrator *syncpkg.Orchestrator
	Config       domain.Configuration
	Log          logger.Logger
}

// BuildEcho assembles the echo instance with middleware and routes. Split
// from RunServer so tests can drive the handler directly.
func BuildEcho(controller *Controller) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	// Set server timeouts based on advice from https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/#1687428081
	e.Server.ReadTimeout = time.Duration(controller.Config.ServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(controller.Config.ServerWriteTimeoutSeconds) * time.Second
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))

	e.GET("/bookmarks", controller.searchBookmarks)
	e.POST("/bookmarks", controller.addBookmark)
	e.PUT("/bookmarks/:id", controller.updateBookmark)
	e.DELETE("/bookmarks/:id", controller.deleteBookmark)
	e.GET("/export", controller.exportBookmarks)
	e.POST("/import", controller.importBookmarks)
	e.POST("/sync", controller.triggerSync)
	e.GET("/sync/status", controller.syncStatus)
	e.GET("/conflicts", controller.listConflicts)
	e.POST("/conflicts/resolve", controller.resolveConflicts)
	e.GET("/feed", controller.showFeed)
	return e
}

func RunServer(controller *Controller) {
	e := BuildEcho(controller)
	e.Logger.Fatal(e.Start(":" + strconv.Itoa(controller.Config.ServerPort)))
	// NO MORE CODE HERE, IT WILL NOT BE EXECUTED
}

type errorBody struct {
	Error string `json:"error"`
}

func (controller *Controller) handleError(c echo.Context, err error) error {
	var validationErr *domain.ValidationError
	var remoteErr *domain.RemoteUnavailableError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorBody{Error: validationErr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &remoteErr):
		return c.JSON(http.StatusBadGateway, errorBody{Error: remoteErr.Error()})
	default:
		controller.Log.Error("internal server error", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

type bookmarkResponse struct {
	domain.Bookmark
	DisplayTitle string `json:"displayTitle"`
}

func toResponse(bookmark domain.Bookmark) bookmarkResponse {
	return bookmarkResponse{Bookmark: bookmark, DisplayTitle: bookmark.DisplayTitle()}
}

func (controller *Controller) searchBookmarks(c echo.Context) error {
	query := c.QueryParam("q")
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	// ignore parse errors here, we'll just use the defaults
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > controller.Config.SearchPageSize {
		limit = controller.Config.SearchPageSize
	}
	bookmarks, err := controller.Store.Search(query, offset, limit)
	if err != nil {
		return controller.handleError(c, err)
	}
	response := make([]bookmarkResponse, 0, len(bookmarks))
	for _, bookmark := range bookmarks {
		response = append(response, toResponse(bookmark))
	}
	return c.JSON(http.StatusOK, response)
}

type addBookmarkRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Notes string `json:"notes"`
}

func (controller *Controller) addBookmark(c echo.Context) error {
	var request addBookmarkRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "malformed request body"})
	}
	bookmark, err := controller.Store.Add(request.URL, request.Title, request.Notes)
	if errors.Is(err, domain.ErrDuplicate) {
		// first write wins, hand back the existing record
		return c.JSON(http.StatusOK, toResponse(bookmark))
	}
	if err != nil {
		return controller.handleError(c, err)
	}
	if err := controller.pushOrQueue(c, domain.OperationAdd, bookmark.ID, func(op *domain.PendingOperation) {
		op.Add = &domain.AddPayload{Bookmark: bookmark}
	}); err != nil {
		// local write committed; the remote failure is surfaced, not hidden
		return c.JSON(http.StatusBadGateway, map[string]any{
			"record": toResponse(bookmark),
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusCreated, toResponse(bookmark))
}

type updateBookmarkRequest struct {
	Title *string `json:"title"`
	Notes *string `json:"notes"`
}

func (controller *Controller) updateBookmark(c echo.Context) error {
	var request updateBookmarkRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "malformed request body"})
	}
	id := c.Param("id")
	bookmark, err := controller.Store.Update(id, request.Title, request.Notes)
	if err != nil {
		return controller.handleError(c, err)
	}
	if err := controller.pushOrQueue(c, domain.OperationUpdate, id, func(op *domain.PendingOperation) {
		op.Update = &domain.UpdatePayload{Title: request.Title, Notes: request.Notes}
	}); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{
			"record": toResponse(bookmark),
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, toResponse(bookmark))
}

func (controller *Controller) deleteBookmark(c echo.Context) error {
	id := c.Param("id")
	if err := controller.Store.SoftDelete(id); err != nil {
		return controller.handleError(c, err)
	}
	if err := controller.pushOrQueue(c, domain.OperationDelete, id, nil); err != nil {
		return c.JSON(http.StatusBadGateway, errorBody{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// pushOrQueue propagates an already committed local mutation to the remote
// backend. While offline the mutation becomes an offline-queue entry instead
// of failing; while online a remote failure is returned to the caller and the
// operation is NOT silently queued.
func (controller *Controller) pushOrQueue(c echo.Context, kind domain.OperationKind, recordID string, fill func(*domain.PendingOperation)) error {
	if !controller.Monitor.Online() {
		op := repository.NewPendingOperation(kind, recordID)
		if fill != nil {
			fill(&op)
		}
		return controller.Queue.Enqueue(op)
	}
	ctx := c.Request().Context()
	switch kind {
	case domain.OperationDelete:
		err := controller.Remote.Delete(ctx, recordID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	default:
		bookmark, err := controller.Store.Get(recordID)
		if err != nil {
			return err
		}
		_, err = controller.Remote.Save(ctx, bookmark)
		return err
	}
}

func (controller *Controller) exportBookmarks(c echo.Context) error {
	format := codec.Format(c.QueryParam("format"))
	if format == "" {
		format = codec.FormatJSON
	}
	bookmarks, err := controller.allActiveBookmarks()
	if err != nil {
		return controller.handleError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentType, format.MimeType())
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="bookmarks.`+string(format)+`"`)
	c.Response().WriteHeader(http.StatusOK)
	return codec.Export(c.Response(), format, bookmarks, controller.Config.Platform)
}

// allActiveBookmarks pages through the store so the export doesn't depend on
// the search page size.
func (controller *Controller) allActiveBookmarks() ([]domain.Bookmark, error) {
	all := make([]domain.Bookmark, 0)
	pageSize := controller.Config.SearchPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	for offset := 0; ; offset += pageSize {
		page, err := controller.Store.Search("", offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (controller *Controller) importBookmarks(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "file form field is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return controller.handleError(c, err)
	}
	defer file.Close()
	summary, err := codec.ImportInto(controller.Store, file, fileHeader.Filename)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	controller.Log.Info("import finished",
		logger.String("source", summary.Source),
		logger.Int("imported", summary.Imported),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errors", len(summary.Errors)))
	return c.JSON(http.StatusOK, summary)
}

func (controller *Controller) triggerSync(c echo.Context) error {
	err := controller.Orchestrator.Sync(c.Request().Context())
	status := controller.Orchestrator.Status()
	switch {
	case errors.Is(err, domain.ErrConflictsPending):
		return c.JSON(http.StatusConflict, status)
	case errors.Is(err, domain.ErrSyncInProgress):
		return c.JSON(http.StatusAccepted, status)
	case err != nil:
		return c.JSON(http.StatusBadGateway, status)
	}
	return c.JSON(http.StatusOK, status)
}

func (controller *Controller) syncStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, controller.Orchestrator.Status())
}

func (controller *Controller) listConflicts(c echo.Context) error {
	return c.JSON(http.StatusOK, controller.Orchestrator.PendingConflicts())
}

type resolveRequest struct {
	// Resolutions maps record ids to a chosen resolution; All applies one
	// blanket resolution to every pending conflict instead.
	Resolutions map[string]domain.Resolution `json:"resolutions"`
	All         domain.Resolution            `json:"all"`
}

func (controller *Controller) resolveConflicts(c echo.Context) error {
	var request resolveRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "malformed request body"})
	}
	resolutions := request.Resolutions
	if request.All != "" {
		resolutions = make(map[string]domain.Resolution)
		for _, conflict := range controller.Orchestrator.PendingConflicts() {
			resolutions[conflict.RecordID] = request.All
		}
	}
	failed, err := controller.Orchestrator.ResolveConflicts(c.Request().Context(), resolutions)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{"failed": failed, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"failed": failed, "status": controller.Orchestrator.Status()})
}

func (controller *Controller) showFeed(c echo.Context) error {
	bookmarks, err := controller.Store.Search("", 0, controller.Config.SearchPageSize)
	if err != nil {
		return controller.handleError(c, err)
	}
	feed := &feeds.Feed{
		Title:       "Bookmarks",
		Link:        &feeds.Link{Href: controller.Config.BaseUrl + "/feed"},
		Description: "Recently modified bookmarks.",
		Created:     time.Now(),
	}
	for _, bookmark := range bookmarks {
		feed.Add(&feeds.Item{
			Title:       bookmark.DisplayTitle(),
			Link:        &feeds.Link{Href: bookmark.URL},
			Description: bookmark.Notes,
			Id:          bookmark.ID,
			Created:     bookmark.Created,
			Updated:     bookmark.Updated,
		})
	}
	rss, err := feed.ToRss()
	if err != nil {
		return controller.handleError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml")
	return c.String(http.StatusOK, rss)
}
