// Package httpapi exposes the record store over REST and mounts the realtime
// websocket endpoint.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/dmitrijs2005/goalboard/internal/server/records"
)

const (
	maxBody           = 1 << 20
	correlationHeader = "X-Correlation-Id"
)

// Records is the record service behind the REST routes.
type Records interface {
	List(ctx context.Context, table string) ([]common.Row, error)
	Insert(ctx context.Context, table string, data []byte) (common.Row, error)
	Upsert(ctx context.Context, table, onConflict string, data []byte) (common.Row, error)
	Update(ctx context.Context, table, id string, data []byte) (common.Row, error)
	Delete(ctx context.Context, table, id string) error
	Ping(ctx context.Context) error
}

type handler struct {
	records Records
	logger  logging.Logger
}

// NewRouter builds the gin engine. realtime may be nil to leave /realtime
// unmounted.
func NewRouter(svc Records, realtime http.Handler, origins []string, logger logging.Logger) *gin.Engine {
	h := &handler{records: svc, logger: logger.With("module", "http_api")}

	r := gin.New()
	r.Use(correlationID())
	r.Use(corsMiddleware(origins))
	r.Use(h.requestLogger())
	r.Use(gin.Recovery())

	r.GET("/healthz", h.health)
	if realtime != nil {
		r.GET("/realtime", gin.WrapH(realtime))
	}

	v1 := r.Group("/rest/v1")
	v1.GET("/:table", h.list)
	v1.POST("/:table", h.insert)
	v1.POST("/:table/upsert", h.upsert)
	v1.PATCH("/:table/:id", h.update)
	v1.DELETE("/:table/:id", h.delete)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(correlationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Set("correlation_id", cid)
		c.Header(correlationHeader, cid)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders(correlationHeader)
	cfg.AddExposeHeaders("Content-Length", correlationHeader)
	return cors.New(cfg)
}

func (h *handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		args := []any{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency", time.Since(start).String(),
			"correlation_id", c.GetString("correlation_id"),
		}
		if len(c.Errors) > 0 {
			h.logger.Error(c.Request.Context(), "request failed", append(args, "error", c.Errors.String())...)
			return
		}
		h.logger.Debug(c.Request.Context(), "request", args...)
	}
}

// fail maps a service error to a status code and JSON error body.
func (h *handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrUnknownTable), errors.Is(err, common.ErrInvalidOp):
		status = http.StatusBadRequest
	case errors.Is(err, records.ErrConflict):
		status = http.StatusConflict
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func body(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	return c.GetRawData()
}

func (h *handler) health(c *gin.Context) {
	if err := h.records.Ping(c.Request.Context()); err != nil {
		h.logger.Warn(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) list(c *gin.Context) {
	rows, err := h.records.List(c.Request.Context(), c.Param("table"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handler) insert(c *gin.Context) {
	data, err := body(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	row, err := h.records.Insert(c.Request.Context(), c.Param("table"), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *handler) upsert(c *gin.Context) {
	data, err := body(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	row, err := h.records.Upsert(c.Request.Context(), c.Param("table"), c.Query("on_conflict"), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *handler) update(c *gin.Context) {
	data, err := body(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	row, err := h.records.Update(c.Request.Context(), c.Param("table"), c.Param("id"), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *handler) delete(c *gin.Context) {
	if err := h.records.Delete(c.Request.Context(), c.Param("table"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
