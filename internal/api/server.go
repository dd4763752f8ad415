// Package api is the HTTP face of the engine: profile and spec metadata,
// validation, preview and generation runs, metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"resforge/internal/engine"
)

type Options struct {
	Profile     string
	OutDir      string
	SpecDir     string
	SpecPattern string
	EnumsDir    string
	Strict      bool
}

type Server struct {
	engine  *engine.Engine
	store   *Store
	opts    Options
	metrics *Metrics
	log     *zap.Logger
}

func NewServer(eng *engine.Engine, store *Store, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: eng, store: store, opts: opts, metrics: NewMetrics(), log: logger}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/profiles", ProfileListHandler())
		apiGroup.GET("/profiles/:name/types", ProfileTypesHandler())
		apiGroup.GET("/catalogs", CatalogListHandler(s))
		apiGroup.GET("/catalogs/:name", CatalogHandler(s))
		apiGroup.GET("/specs", SpecListHandler(s))
		apiGroup.GET("/specs/:name", SpecHandler(s))

		apiGroup.POST("/validate", ValidateHandler(s))
		apiGroup.POST("/generate", GenerateHandler(s))
		apiGroup.GET("/runs", ListRunsHandler(s))
		apiGroup.GET("/runs/:id", GetRunHandler(s))
		apiGroup.GET("/runs/:id/artifacts/:kind", ArtifactContentHandler(s))

		apiGroup.POST("/admin/reload", AdminReloadHandler(s))
	}
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
