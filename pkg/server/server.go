// Package server serves rendered reports and the cached records behind them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"screenlist/pkg/cache"
	"screenlist/pkg/domain"
	"screenlist/pkg/render"

	"github.com/gin-gonic/gin"
)

// Config wires the server
type Config struct {
	Addr      string
	OutputDir string
	// Stores maps a preset name to its record cache.
	Stores map[string]cache.Store
}

// Server is the report HTTP server
type Server struct {
	cfg    Config
	router *gin.Engine
}

// New builds the router
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{cfg: cfg, router: router}

	router.GET("/health", s.health)
	router.GET("/reports", s.listReports)
	router.GET("/reports/:name", s.report)

	api := router.Group("/api")
	api.GET("/records/:preset", s.records)
	api.GET("/records/:preset/:key", s.record)

	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server: listening", "addr", s.cfg.Addr, "output_dir", s.cfg.OutputDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Server: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "output_dir": s.cfg.OutputDir, "presets": s.presetNames()})
}

func (s *Server) listReports(c *gin.Context) {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"reports": []string{}})
		return
	}

	reports := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".html", ".json":
			reports = append(reports, e.Name())
		}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) report(c *gin.Context) {
	name := c.Param("name")
	body, err := render.ReadReport(s.cfg.OutputDir, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		slog.Error("Server: failed to read report", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}

	contentType := "text/html; charset=utf-8"
	if filepath.Ext(name) == ".json" {
		contentType = "application/json"
	}
	c.Data(http.StatusOK, contentType, body)
}

func (s *Server) records(c *gin.Context) {
	records, ok := s.loadRecords(c)
	if !ok {
		return
	}

	list := records.Records()
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		list = slices.DeleteFunc(list, func(r domain.EnrichmentRecord) bool {
			return !strings.Contains(strings.ToLower(r.DisplayName), q) && !strings.Contains(string(r.Key), q)
		})
	}
	c.JSON(http.StatusOK, gin.H{"preset": c.Param("preset"), "count": len(list), "records": list})
}

func (s *Server) record(c *gin.Context) {
	records, ok := s.loadRecords(c)
	if !ok {
		return
	}

	rec, found := records[domain.CanonicalKey(c.Param("key"))]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) loadRecords(c *gin.Context) (domain.RecordSet, bool) {
	preset := c.Param("preset")
	store, ok := s.cfg.Stores[preset]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown preset"})
		return nil, false
	}

	records, err := store.Load(c.Request.Context())
	if err != nil {
		if errors.Is(err, cache.ErrCacheUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
			return nil, false
		}
		slog.Error("Server: failed to load records", "preset", preset, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return nil, false
	}
	return records, true
}

func (s *Server) presetNames() []string {
	names := make([]string, 0, len(s.cfg.Stores))
	for name := range s.cfg.Stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("Server: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
