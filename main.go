package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wordloop/internal/config"
	"wordloop/internal/hub"
	"wordloop/internal/loop"
	"wordloop/internal/metrics"
	"wordloop/internal/words"
	"wordloop/internal/ws"
)

// App holds the shared state behind the HTTP and WebSocket handlers.
type App struct {
	Config    *config.Config
	Clock     clockwork.Clock
	StartTime time.Time

	Words       *words.Source
	Loop        *loop.Controller
	Registry    *hub.Registry
	Broadcaster *hub.Broadcaster
	Metrics     *metrics.Metrics
	Prometheus  *prometheus.Registry
	Upgrader    *websocket.Upgrader

	AssetDir string

	LimiterMap   map[string]*clientLimiter
	LimiterMutex sync.Mutex
	lastSweep    time.Time

	// controlMu serializes loop transitions with their notifications.
	controlMu sync.Mutex

	connCtx     context.Context
	cancelConns context.CancelFunc
	closeOnce   sync.Once
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logFatal("%v", err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		port     int
		interval time.Duration
		wordList string
	)

	cmd := &cobra.Command{
		Use:           "wordloop",
		Short:         "Broadcasts a randomly chosen word to WebSocket clients on a fixed interval.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("interval") {
				cfg.WordInterval = interval
			}
			if flags.Changed("words") {
				cfg.Words = wordList
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			initLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides PORT)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "word change interval (overrides WORD_INTERVAL)")
	cmd.Flags().StringVar(&wordList, "words", "", "comma-separated vocabulary (overrides WORDS)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logInfo("Starting wordloop in %s mode", map[bool]string{true: "production", false: "development"}[cfg.IsProduction()])

	app, err := NewApp(cfg, clockwork.NewRealClock(), metrics.NewRegistry())
	if err != nil {
		return err
	}
	logInfo("Loaded %d words, interval %v", app.Words.Len(), app.Loop.Interval())

	return app.startServer(ctx, app.setupRouter())
}

// NewApp wires the word source, loop, connection registry and broadcaster.
func NewApp(cfg *config.Config, clock clockwork.Clock, reg *prometheus.Registry) (*App, error) {
	source, err := words.NewSource(cfg.Vocabulary())
	if err != nil {
		return nil, fmt.Errorf("failed to load words: %w", err)
	}

	m := metrics.New(reg)
	registry := hub.NewRegistry(m)
	connCtx, cancel := context.WithCancel(context.Background())

	assetDir := "static"
	if cfg.IsProduction() && dirExists(filepath.Join("dist", "static")) {
		assetDir = filepath.Join("dist", "static")
	}

	return &App{
		Config:      cfg,
		Clock:       clock,
		StartTime:   clock.Now(),
		Words:       source,
		Loop:        loop.NewController(source, cfg.WordInterval, clock),
		Registry:    registry,
		Broadcaster: hub.NewBroadcaster(registry, m),
		Metrics:     m,
		Prometheus:  reg,
		Upgrader:    ws.NewUpgrader(cfg.Origins(), !cfg.IsProduction()),
		AssetDir:    assetDir,
		LimiterMap:  make(map[string]*clientLimiter),
		lastSweep:   clock.Now(),
		connCtx:     connCtx,
		cancelConns: cancel,
	}, nil
}

func (app *App) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.CustomRecovery(app.recoveryHandler))
	router.Use(requestIDMiddleware(), app.cacheHeadersMiddleware())

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	// Compression stays off the routes that may be upgraded to WebSocket.
	compress := ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}))

	api := router.Group(RouteAPI, compress)
	api.POST(RouteStartLoop, app.rateLimitMiddleware(), app.startLoopHandler)
	api.POST(RouteStopLoop, app.rateLimitMiddleware(), app.stopLoopHandler)
	api.GET(RouteCurrentWord, app.currentWordHandler)
	api.GET(RouteStatus, app.statusHandler)

	logInfo("Serving assets from %s", app.AssetDir)
	router.Group(RouteStatic, compress).Static("/", app.AssetDir)

	router.GET(RouteHome, app.homeHandler)
	router.GET(RouteWebSocket, app.wsHandler)
	router.GET(RouteHealth, app.healthHandler)
	router.GET(RouteHealthz, app.healthzHandler)
	router.GET(RouteMetrics, gin.WrapH(metrics.Handler(app.Prometheus)))
	router.NoRoute(app.notFoundHandler)

	return router
}

// Close stops the loop and disconnects every client. It is safe to call more than once.
func (app *App) Close() {
	app.closeOnce.Do(func() {
		app.controlMu.Lock()
		app.Loop.Shutdown()
		app.Metrics.LoopRunning.Set(0)
		app.controlMu.Unlock()

		closed := app.Registry.CloseAll(websocket.CloseNormalClosure, CloseReasonShutdown)
		app.cancelConns()
		logInfo("Closed %d WebSocket connection%s", closed, plural(closed))
	})
}

func (app *App) startServer(ctx context.Context, router http.Handler) error {
	// No read or write timeout: upgraded connections live as long as the client.
	srv := &http.Server{
		Addr:              app.Config.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logInfo("Server starting on http://localhost:%d", app.Config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logInfo("Shutdown signal received, shutting down server gracefully...")
		app.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	logInfo("Server shutdown complete")
	return err
}
