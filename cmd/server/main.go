package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/stopopioids/internal/config"
	"github.com/Skufu/stopopioids/internal/observability"
	"github.com/Skufu/stopopioids/internal/relay"
	"github.com/Skufu/stopopioids/internal/upstream"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	assessor   relay.Assessor
	upstream   HealthChecker
	metrics    *observability.Metrics
	logger     logrus.FieldLogger
	mode       config.Mode
	staticRoot string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger := observability.NewLogger(cfg.Log, os.Stdout)
	metrics := observability.NewMetrics()

	client := upstream.NewClient(cfg.Upstream,
		upstream.WithLogger(logger.WithField("component", "upstream")),
		upstream.WithRecorder(metrics),
	)

	deps := routerDeps{
		assessor:   client,
		metrics:    metrics,
		logger:     logger,
		mode:       cfg.Mode,
		staticRoot: cfg.StaticRoot,
	}
	if cfg.CheckUpstream {
		deps.upstream = client
	}
	if deps.staticRoot == "" {
		deps.staticRoot = detectStaticRoot()
	}

	router := setupRouter(deps)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":  cfg.Port,
		"mode":  cfg.Mode,
		"model": cfg.Upstream.Model,
	}).Info("server listening")
	waitForShutdown(server, logger)
}

func setupRouter(deps routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		observability.RequestLogger(deps.logger),
		observability.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", observability.RequestIDHeader},
			ExposeHeaders: []string{observability.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	// An external frontend build may live next to the binary.
	if deps.staticRoot != "" && fileExists(filepath.Join(deps.staticRoot, "index.html")) {
		router.Static("/static", deps.staticRoot)
		router.StaticFile("/", filepath.Join(deps.staticRoot, "index.html"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		if deps.upstream == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "upstream": "unchecked"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := deps.upstream.Ping(ctx); err != nil {
			observability.Logger(c).WithError(err).Warn("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "degraded",
				"upstream": "unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"upstream": "ok",
		})
	})

	router.GET("/metrics", gin.WrapH(deps.metrics.Handler()))

	relay.NewHandler(deps.assessor, deps.metrics).Register(router, deps.mode)

	return router
}

func waitForShutdown(server *http.Server, logger logrus.FieldLogger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func detectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidates := []string{
		filepath.Join(startDir, "web"),
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
