package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/goalboard/internal/client/bootstrap"
	"github.com/dmitrijs2005/goalboard/internal/client/config"
	"github.com/dmitrijs2005/goalboard/internal/client/connectivity"
	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/migrations"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/dbx"
	"github.com/dmitrijs2005/goalboard/internal/filex"
	"github.com/dmitrijs2005/goalboard/internal/logging"

	_ "modernc.org/sqlite"
)

const dbFile = "goalboard.db"

// App owns every client component for the lifetime of one command.
type App struct {
	cfg    *config.Config
	logger logging.Logger
	out    io.Writer

	db       *sql.DB
	store    *store.Store
	queue    *queue.Queue
	remote   *remote.Client
	realtime *remote.Realtime
	health   *remote.HealthProber
	watcher  *connectivity.Watcher
	engine   *engine.Engine
	session  *bootstrap.Session
}

// AppOptions tune what NewApp wires.
type AppOptions struct {
	// Realtime connects the change and presence channel once ready.
	Realtime bool
	Notifier engine.Notifier
	Engine   []engine.Option
}

func dsn(cfg *config.Config) (string, error) {
	if cfg.Ephemeral {
		return fmt.Sprintf("file:goalboard-%s?mode=memory&cache=shared", uuid.NewString()), nil
	}
	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.Join(dir, dbFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger, out io.Writer, opts AppOptions) (*App, error) {
	source, err := dsn(cfg)
	if err != nil {
		return nil, err
	}

	db, err := dbx.Open(ctx, "sqlite", source, migrations.Migrations, "sqlite3")
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	db.SetMaxOpenConns(1)

	a := &App{cfg: cfg, logger: logger, out: out, db: db}

	a.remote, err = remote.NewClient(cfg.ServerURL, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.store = store.New(store.NewSQLiteBackend(db), logger)
	a.queue = queue.New(queue.NewSQLiteRepository(db), a.remote, logger, queue.WithInterval(cfg.QueueInterval))

	var prober connectivity.Prober
	switch {
	case cfg.Offline || !a.remote.Configured():
	case cfg.HealthAddr != "":
		a.health, err = remote.NewHealthProber(cfg.HealthAddr)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		prober = a.health
	default:
		prober = remote.PingProber{Client: a.remote}
	}
	a.watcher = connectivity.NewWatcher(prober, cfg.OnlineCheckInterval, logger)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = newPrinter(out)
	}

	engineOpts := append([]engine.Option{engine.WithDebounce(cfg.Debounce)}, opts.Engine...)
	a.engine = engine.New(engine.Deps{
		Remote:       a.remote,
		Queue:        a.queue,
		Connectivity: a.watcher,
		Store:        a.store,
		Notifier:     notifier,
		Logger:       logger,
	}, engineOpts...)

	comps := bootstrap.Components{
		Engine:   a.engine,
		Queue:    a.queue,
		Remote:   a.remote,
		Watcher:  a.watcher,
		Store:    a.store,
		Notifier: notifier,
		Logger:   logger,
	}
	if opts.Realtime && a.remote.Configured() && !cfg.Offline {
		a.realtime = remote.NewRealtime(a.remote.RealtimeURL(), remote.RealtimeConfig{}, logger)
		comps.Realtime = a.realtime
	}

	a.session = bootstrap.NewSession(comps, bootstrap.Config{
		LoadTimeout: cfg.LoadTimeout,
		RetryDelay:  cfg.RetryDelay,
		MaxRetries:  cfg.MaxRetries,
	})
	return a, nil
}

// Start bootstraps the session.
func (a *App) Start(ctx context.Context) error {
	phase, err := a.session.Start(ctx)
	if err != nil {
		return err
	}
	if phase == bootstrap.PhaseDegradedReady {
		fmt.Fprintln(a.out, "warning: local data could not be loaded, starting with defaults")
	}
	return nil
}

// Close tears the session down and releases the database.
func (a *App) Close(ctx context.Context) error {
	a.session.Teardown(ctx)

	var errs []error
	if a.health != nil {
		errs = append(errs, a.health.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}

func (a *App) Engine() *engine.Engine {
	return a.engine
}

func (a *App) Session() *bootstrap.Session {
	return a.session
}

func (a *App) Queue() *queue.Queue {
	return a.queue
}

func (a *App) Online() bool {
	return a.watcher.Online()
}
