// Package admin serves the bindhost operator HTTP surface.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/danmuck/zcnbind/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// Server exposes health, readiness, metrics and heap inspection.
type Server struct {
	Name       string
	Addr       string
	InstanceID string
	Appeared   time.Time

	heap     *foreign.Heap
	registry *prometheus.Registry
	router   *gin.Engine
	ready    atomic.Bool
}

func New(name, addr string, heap *foreign.Heap, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger("admin")))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", observability.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(observability.NewHeapCollector(heap))

	s := &Server{
		Name:       name,
		Addr:       addr,
		InstanceID: uuid.NewString(),
		Appeared:   time.Now(),
		heap:       heap,
		registry:   registry,
		router:     r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// SetReady flips the /ready answer.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.Appeared).String(),
			"service":  s.Name,
			"instance": s.InstanceID,
			"version":  Version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		if !s.ready.Load() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":    s.ready.Load(),
			"service":  s.Name,
			"instance": s.InstanceID,
		})
	})

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, s.registry}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	s.router.GET("/handles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"stats":   s.heap.Stats(),
			"handles": s.heap.Handles(),
		})
	})

	s.router.GET("/handles/:handle", func(c *gin.Context) {
		n, err := strconv.ParseInt(c.Param("handle"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "handle must be an int32"})
			return
		}
		h := abi.Handle(n)
		class, values, err := s.heap.Snapshot(h)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, abi.ErrStaleHandle) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		fields := make(gin.H, len(class.Fields))
		for i, f := range class.Fields {
			if f.Kind == abi.KindInt64 {
				fields[f.Name] = values[i].Int
			} else {
				fields[f.Name] = values[i].Str
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"handle":  int32(h),
			"class":   class.Name,
			"fields":  fields,
			"display": class.Format(values),
		})
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Str("instance", s.InstanceID).Msg("admin listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
