// Package handler exposes the marker service over HTTP and serves the
// front-end bundle.
package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"starmap/logging"
	"starmap/service"
	"starmap/storage"
)

const healthTimeLayout = "2006-01-02T15:04:05.000000"

type Handler struct {
	svc       *service.Service
	staticDir string
	now       func() time.Time
}

func New(svc *service.Service, staticDir string) *Handler {
	return &Handler{svc: svc, staticDir: staticDir, now: time.Now}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/markers", h.listMarkers)
		api.POST("/markers", h.createMarker)
		api.POST("/markers/:id/like", h.likeMarker)
		api.GET("/stats", h.stats)
		api.GET("/featured", h.featured)
	}
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(h.static)
}

// queryBool treats only a case-insensitive "true" as true.
func queryBool(c *gin.Context, key, def string) bool {
	return strings.EqualFold(c.DefaultQuery(key, def), "true")
}

func (h *Handler) listMarkers(c *gin.Context) {
	f := storage.Filter{
		WithImages: queryBool(c, "withImages", "true"),
		RecentOnly: queryBool(c, "recent", "false"),
	}
	markers, err := h.svc.ListMarkers(c.Request.Context(), f)
	if err != nil {
		logging.Error().Err(err).Msg("list markers")
		markers = []storage.Marker{}
	}
	c.JSON(http.StatusOK, markers)
}

func (h *Handler) createMarker(c *gin.Context) {
	var in storage.MarkerInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid JSON body: " + err.Error()})
		return
	}

	m, err := h.svc.CreateMarker(c.Request.Context(), in)
	if err != nil {
		logging.Error().Err(err).Msg("create marker")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marker": m})
}

func (h *Handler) likeMarker(c *gin.Context) {
	id := c.Param("id")
	likes, err := h.svc.LikeMarker(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "标记不存在"})
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("marker", id).Msg("like marker")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "likes": likes})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		logging.Error().Err(err).Msg("load stats")
		st = storage.Stats{}
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) featured(c *gin.Context) {
	markers, err := h.svc.Featured(c.Request.Context())
	if err != nil {
		logging.Error().Err(err).Msg("load featured markers")
		markers = []storage.Marker{}
	}
	c.JSON(http.StatusOK, markers)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"database_enabled": h.svc.DatabaseEnabled(),
		"timestamp":        h.now().Format(healthTimeLayout),
	})
}

// static serves files from the bundle and falls back to index.html so the
// front-end router can handle the path.
func (h *Handler) static(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
		return
	}
	rel := filepath.Clean("/" + c.Request.URL.Path)
	if rel != "/" {
		p := filepath.Join(h.staticDir, rel)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			c.File(p)
			return
		}
	}
	c.File(filepath.Join(h.staticDir, "index.html"))
}
