package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-digest/app/aggregator"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/opml"
	"github.com/lysyi3m/rss-digest/app/snapshot"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

const maxUploadSize = 5 << 20

var errAlreadyLoading = errors.New("an aggregation is already in progress")

type Handler struct {
	ctx          context.Context
	runner       RunnerInterface
	session      *Session
	generator    *feed.Generator
	runs         database.RunRepository
	statuses     database.FeedStatusRepository
	defaultHours int
	version      string
	now          func() time.Time
	wg           sync.WaitGroup
}

// NewHandler creates the serve mode handler. Runs started by uploads use ctx.
// runs and statuses may be nil when run history is disabled.
func NewHandler(ctx context.Context, runner RunnerInterface, runs database.RunRepository,
	statuses database.FeedStatusRepository, defaultHours int, version string) *Handler {
	return &Handler{
		ctx:          ctx,
		runner:       runner,
		session:      NewSession(),
		generator:    feed.NewGenerator(),
		runs:         runs,
		statuses:     statuses,
		defaultHours: defaultHours,
		version:      version,
		now:          time.Now,
	}
}

// Wait blocks until background runs have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// LoadFile starts an aggregation for an OPML file on disk.
func (h *Handler) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read OPML file: %w", err)
	}

	_, err = h.load(path, data)
	return err
}

// load parses the document and starts the run in the background.
func (h *Handler) load(source string, data []byte) (int, error) {
	descriptors, err := opml.ParseBytes(data)
	if err != nil {
		var parseErr *opml.ParseError
		if errors.As(err, &parseErr) && h.session.Begin(source, 0) {
			h.session.Fail(fmt.Sprintf("Failed to parse OPML: %v", parseErr.Err))
		}
		return 0, err
	}

	if !h.session.Begin(source, len(descriptors)) {
		return 0, errAlreadyLoading
	}

	slog.Info("OPML loaded", "source", source, "feeds", len(descriptors))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		progress := func(done, total int, outcome tasks.Outcome) {
			h.session.Progress(done, total)
		}

		result := h.runner.Run(h.ctx, descriptors, progress)
		h.session.Finish(result)
	}()

	return len(descriptors), nil
}

func (h *Handler) UploadOPML(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing OPML file in form field 'file'"})
		return
	}

	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "OPML file is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error("Failed to open upload", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		slog.Error("Failed to read upload", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}

	count, err := h.load(fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, errAlreadyLoading) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.Warn("Rejected OPML upload", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "status": h.session.Status().Message})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"feeds":  count,
		"status": h.session.Status().Message,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

func (h *Handler) GetItems(c *gin.Context) {
	hours, ok := h.parseHours(c)
	if !ok {
		return
	}

	result := h.session.Result()
	items := aggregator.View(result, time.Duration(hours)*time.Hour, h.now(), feed.MissingDateAsNow)

	response := ItemsResponse{
		Hours:       hours,
		Status:      h.statusText(len(items), hours, result),
		Items:       make([]snapshot.Item, 0, len(items)),
		FailedFeeds: []aggregator.FeedFailure{},
	}

	if result != nil {
		response.FetchedAt = snapshot.FormatTime(result.FetchedAt)
		response.FeedCount = result.FeedCount
		response.FailedFeeds = result.FailedFeeds
	} else if status := h.session.Status(); status.State != string(StateIdle) {
		response.Status = status.Message
	}

	for _, item := range items {
		response.Items = append(response.Items, snapshot.NewItem(item))
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetFeedXML(c *gin.Context) {
	hours, ok := h.parseHours(c)
	if !ok {
		return
	}

	result := h.session.Result()
	items := aggregator.View(result, time.Duration(hours)*time.Hour, h.now(), feed.MissingDateAsNow)

	channel := feed.Channel{
		Title:       "RSS Digest",
		Link:        fmt.Sprintf("%s/", baseURL(c)),
		Description: fmt.Sprintf("Items from the last %d hours", hours),
		SelfURL:     fmt.Sprintf("%s/feed.xml?hours=%d", baseURL(c), hours),
		BuildTime:   h.now().UTC(),
		Version:     h.version,
	}
	if result != nil {
		channel.Description = fmt.Sprintf("Items from the last %d hours across %d feeds", hours, result.FeedCount)
		channel.BuildTime = result.FetchedAt
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))

	c.String(http.StatusOK, h.generator.Run(channel, items))
}

func (h *Handler) ListFeeds(c *gin.Context) {
	if h.statuses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history is disabled"})
		return
	}

	statuses, err := h.statuses.ListFeedStatuses()
	if err != nil {
		slog.Error("Database error", "operation", "list_feed_statuses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(statuses))
	for _, status := range statuses {
		feeds = append(feeds, map[string]interface{}{
			"url":             status.URL,
			"title":           status.Title,
			"last_fetched_at": status.LastFetchedAt,
			"last_success_at": status.LastSuccessAt,
			"last_error":      status.LastError,
			"last_item_count": status.LastItemCount,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run history is disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, 500)
	}

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"state":     h.session.Status().State,
	}

	if result := h.session.Result(); result != nil {
		health["feeds"] = result.FeedCount
		health["items"] = len(result.Collected)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (h *Handler) parseHours(c *gin.Context) (int, bool) {
	raw := c.Query("hours")
	if raw == "" {
		return h.defaultHours, true
	}

	hours, err := strconv.Atoi(raw)
	if err != nil || !slices.Contains(AllowedHours, hours) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   fmt.Sprintf("invalid hours %q", raw),
			"allowed": AllowedHours,
		})
		return 0, false
	}

	return hours, true
}

func (h *Handler) statusText(count, hours int, result *aggregator.Result) string {
	if count == 0 {
		return "No items in this time range."
	}
	return fmt.Sprintf("Showing %d items from the last %d hours (%d feeds)", count, hours, result.FeedCount)
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}
