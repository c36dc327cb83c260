// Package server initializes and runs the goalboard record store: the REST
// and realtime endpoint, the gRPC health service and, when configured, the
// Redis bridge that shares change notifications between instances.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/goalboard/internal/dbx"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/dmitrijs2005/goalboard/internal/server/config"
	"github.com/dmitrijs2005/goalboard/internal/server/httpapi"
	"github.com/dmitrijs2005/goalboard/internal/server/migrations"
	"github.com/dmitrijs2005/goalboard/internal/server/realtime"
	"github.com/dmitrijs2005/goalboard/internal/server/records"

	gs "github.com/dmitrijs2005/goalboard/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	hub     *realtime.Hub
	bridge  *realtime.Bridge
	records *records.Service
	handler http.Handler
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	var repo records.Repository
	if c.Memory {
		logger.Warn(ctx, "records kept in memory, data is lost on exit")
		repo = records.NewMemoryRepository()
	} else {
		db, err := dbx.Open(ctx, "pgx", c.DatabaseDSN, migrations.Migrations, "pgx")
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		repo = records.NewPostgresRepository(db)
	}

	app.hub = realtime.NewHub(logger, realtime.WithOriginPatterns(originPatterns(c.AllowedOrigins)...))

	var pub records.Publisher = app.hub
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.bridge = realtime.NewBridge(app.redis, c.RedisChannel, app.hub, logger)
		pub = app.bridge
	}

	app.records = records.NewService(repo, pub, logger)

	gin.SetMode(gin.ReleaseMode)
	app.handler = httpapi.NewRouter(app.records, http.HandlerFunc(app.hub.ServeWS), c.AllowedOrigins, logger)
	return app, nil
}

// originPatterns turns CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		host, ok := strings.CutPrefix(o, "https://")
		if !ok {
			host, ok = strings.CutPrefix(o, "http://")
		}
		if ok {
			out = append(out, host)
		}
	}
	return out
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:        app.config.HTTPAddr,
		Handler:     app.handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.records, app.config.HealthInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startBridge(ctx context.Context) {
	if err := app.bridge.Run(ctx); err != nil && ctx.Err() == nil {
		// notifications still reach local clients
		app.logger.Error(ctx, "redis bridge stopped", "error", err)
	}
}

// Run serves until a termination signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if app.bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startBridge(ctx)
		}()
	}

	wg.Wait()
}

// Close releases the database and Redis connections.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

// Handler exposes the HTTP handler, mainly for tests.
func (app *App) Handler() http.Handler {
	return app.handler
}
