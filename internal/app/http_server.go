package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"time-tracker/internal/domain"
)

// HTTPServer returns a configured http.Server exposing the tracking operations.
// Call ListenAndServe on the returned server in a goroutine; Shutdown stops it.
func (a *App) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.mu.Lock()
	a.srv = srv
	a.mu.Unlock()
	a.log.Info("http server configured", slog.String("addr", addr))
	return srv
}

// Handler builds the gin engine with all routes.
func (a *App) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(a.log))
	r.Use(cors.New(corsConfig(a.cfg.HTTP.CORSOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		if err := a.repo.DB().PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "store unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	trackers := r.Group("/trackers")
	{
		trackers.GET("", a.listTrackers)
		trackers.POST("", a.createTracker)
		trackers.PATCH("/:id", a.renameTracker)
		trackers.DELETE("/:id", a.deleteTracker)
		trackers.GET("/:id/lines", a.listTrackerLines)
	}

	lines := r.Group("/lines")
	{
		lines.GET("", a.listLines)
		lines.POST("", a.startTracking)
		lines.POST("/stop-all", a.stopAll)
		lines.POST("/:id/stop", a.stopTracking)
		lines.POST("/:id/resume", a.resumeTracking)
		lines.PATCH("/:id", a.updateTracked)
		lines.DELETE("/:id", a.removeTracked)
	}

	r.GET("/view", a.getView)
	r.PUT("/view/selection", a.selectTracker)
	return r
}

// corsConfig allows the given origins, or any origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
	}
	return cfg
}

type labelRequest struct {
	Label string `json:"label"`
}

type startRequest struct {
	EntryID int64  `json:"entry_id" binding:"required"`
	Desc    string `json:"desc"`
}

type descRequest struct {
	Desc string `json:"desc"`
}

type selectionRequest struct {
	TrackerID int64 `json:"tracker_id"`
}

func (a *App) listTrackers(c *gin.Context) {
	out, err := a.svc.GetTrackers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) createTracker(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := a.svc.CreateTracker(c.Request.Context(), req.Label)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (a *App) renameTracker(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := a.svc.RenameTracker(c.Request.Context(), id, req.Label)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) deleteTracker(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := a.svc.DeleteTracker(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) listTrackerLines(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := a.svc.GetTrackerLinesForEntry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) listLines(c *gin.Context) {
	out, err := a.svc.GetTrackerLines(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) startTracking(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := a.svc.StartTracking(c.Request.Context(), req.EntryID, req.Desc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (a *App) stopTracking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := a.svc.StopTracking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) resumeTracking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := a.svc.ResumeTracking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) updateTracked(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req descRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := a.svc.UpdateTracked(c.Request.Context(), id, req.Desc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) removeTracked(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := a.svc.RemoveTracked(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// stopAll reports the stopped lines even when some lines failed.
func (a *App) stopAll(c *gin.Context) {
	stopped, err := a.svc.StopAllActiveTracking(c.Request.Context())
	body := gin.H{"status": "ok", "stopped": stopped}
	status := http.StatusOK
	if err != nil {
		body["status"] = "error"
		body["error"] = err.Error()
		status = statusFor(err)
	}
	c.JSON(status, body)
}

// getView returns the latest snapshot; ?tracker=N narrows its lines to one tracker.
func (a *App) getView(c *gin.Context) {
	snap := a.view.Snapshot()
	raw, ok := c.GetQuery("tracker")
	if !ok {
		c.JSON(http.StatusOK, snap)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid tracker " + strconv.Quote(raw)})
		return
	}
	narrowed := *snap
	narrowed.Lines = snap.LinesFor(id)
	c.JSON(http.StatusOK, narrowed)
}

func (a *App) selectTracker(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a.view.Select(req.TrackerID)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "tracker_id": req.TrackerID})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"status": "error", "error": err.Error()})
}

// requestLogger tags each request with an id and logs it on completion.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.Info("http request",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("remote", c.ClientIP()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}
