package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/db"
	"github.com/yungbote/caseforge-backend/internal/http"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients

	dbs          *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func newLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func openDB(log *logger.Logger, cfg Config) (*db.Service, error) {
	dbs, err := db.NewService(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return dbs, nil
}

// Migrate creates or updates every table and exits.
func Migrate(configFile string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	cfg, err := LoadConfig(log, configFile)
	if err != nil {
		return err
	}
	dbs, err := openDB(log, cfg)
	if err != nil {
		return err
	}
	defer dbs.Close()
	return dbs.AutoMigrateAll()
}

func New(configFile string) (*App, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log, configFile)
	if err != nil {
		log.Sync()
		return nil, err
	}

	dbs, err := openDB(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbs.DB()

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)
	metrics := observability.Init()

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients)
	handlerset := wireHandlers(theDB, log, reposet, serviceset)
	middleware := wireMiddleware(log, cfg)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		dbs:          dbs,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background workers: the persistence queue and the
// bus-to-hub forwarder.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Services.Persist.Start()
	if err := realtime.Forward(ctx, a.Clients.FrameBus, a.Services.Hub); err != nil {
		return fmt.Errorf("start frame forwarder: %w", err)
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Close stops the server, lets running pipelines submit their writes, then
// drains the persistence queue before releasing clients and the database.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown incomplete", "error", err)
		}
	}
	if a.Services.Pipeline != nil {
		if err := a.Services.Pipeline.Wait(ctx); err != nil {
			a.Log.Warn("Pipelines still running at shutdown", "error", err)
		}
	}
	if a.Services.Persist != nil {
		if err := a.Services.Persist.Close(ctx); err != nil {
			a.Log.Warn("Persist queue not drained", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.dbs != nil {
		_ = a.dbs.Close()
	}
	a.Log.Sync()
}
