package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"socialnet/internal/auth"
	"socialnet/internal/db"
	httpx "socialnet/internal/http"
	"socialnet/internal/metrics"
	"socialnet/internal/service"
	"socialnet/internal/store"
	"socialnet/internal/store/memstore"
)

// App is the wired process: one store handle shared by every component.
type App struct {
	Cfg      Config
	Log      *logrus.Logger
	DB       *sqlx.DB
	Store    store.Store
	Sessions *auth.Sessions
	Metrics  *metrics.Metrics
	Service  *service.Service
	Server   *httpx.Server
}

func New(ctx context.Context, cfg Config, log *logrus.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log, Metrics: metrics.New()}

	if cfg.DatabaseURL == MemoryDSN {
		log.Warn("using in-memory store, data is lost on exit")
		a.Store = memstore.New()
	} else {
		d, err := db.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(d); err != nil {
			_ = d.Close()
			return nil, err
		}
		a.DB = d
		a.Store = store.NewPostgres(d)
	}

	a.Sessions = auth.NewSessions(cfg.JWTSecret, cfg.TokenTTL, a.Store,
		auth.WithLogger(log.WithField("component", "sessions")),
		auth.WithRecorder(a.Metrics),
	)
	a.Service = service.New(a.Store, a.Sessions, log.WithField("component", "service"), a.Metrics)
	a.Server = httpx.NewServer(a.Service, a.Sessions, a.Metrics, log.WithField("component", "http"), httpx.Options{
		RequestTimeout: cfg.RequestTimeout,
		AuthRate:       cfg.AuthRatePerSec,
		AuthBurst:      cfg.AuthRateBurst,
	})
	return a, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)
	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log format %q: want text or json", cfg.LogFormat)
	}
	return log, nil
}

func Must(err error) {
	if err != nil {
		logrus.Fatal(err)
	}
}
