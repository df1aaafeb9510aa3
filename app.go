package stoparrivals

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/config"
	"github.com/theoremus-urban-solutions/stop-arrivals/favorites"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
	"github.com/theoremus-urban-solutions/stop-arrivals/gtfs"
	"github.com/theoremus-urban-solutions/stop-arrivals/gtfsdb"
	"github.com/theoremus-urban-solutions/stop-arrivals/gtfsrt"
	"github.com/theoremus-urban-solutions/stop-arrivals/lookup"
	"github.com/theoremus-urban-solutions/stop-arrivals/metrics"
	"github.com/theoremus-urban-solutions/stop-arrivals/reconcile"
)

// App holds the wired components for one selected feed.
type App struct {
	Config    *config.AppConfig
	Feed      config.Feed
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Client    *feed.Client
	Service   *lookup.Service
	Favorites *favorites.Manager

	checks  []HealthCheck
	closers []func()
}

// NewApp builds every component from cfg. feedName selects among cfg.Feeds.
func NewApp(ctx context.Context, cfg *config.AppConfig, feedName string, logger *zap.Logger) (*App, error) {
	f, err := cfg.SelectFeed(feedName)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Feed:    f,
		Logger:  logger.With(zap.String("feed", f.Name)),
		Metrics: metrics.NewCollector(config.Duration(cfg.Lookup.RefreshIntervalMS)),
	}

	stops, planned, static, err := a.openPlanned(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	var (
		routeLabel func(string) string
		schedule   gtfsrt.ScheduleFunc
	)
	if static != nil {
		routeLabel, schedule = static.RouteLabel, static.ScheduledAt
	}

	a.Client, err = feed.NewClient(feed.Options{
		BaseURL:            f.API.BaseURL,
		APIKey:             f.API.APIKey,
		Timeout:            config.Duration(f.API.TimeoutMS),
		MaxRetries:         uint64(f.API.MaxRetries),
		RetryInterval:      config.Duration(f.API.RetryIntervalMS),
		PlannedLimit:       f.API.PlannedLimit,
		RealtimeStrategies: f.API.RealtimeStrategies,
		TripUpdatesURL:     f.GTFSRT.TripUpdatesURL,
		RouteLabel:         routeLabel,
		Schedule:           schedule,
		Logger:             a.Logger.Named("feed"),
		Observer:           a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("feed client: %w", err)
	}
	if stops == nil {
		stops, planned = a.Client, a.Client
	}

	a.Service, err = lookup.NewService(lookup.Options{
		Stops:        stops,
		Planned:      planned,
		Realtime:     a.Client,
		Window:       time.Duration(cfg.Lookup.WindowMinutes) * time.Minute,
		DisplayLimit: cfg.Lookup.DisplayLimit,
		Join: reconcile.Options{
			IncludeUnmatchedRealtime: cfg.Lookup.IncludeUnmatchedRealtime,
			ConsumeMatches:           cfg.Lookup.ConsumeMatches,
		},
		Logger:   a.Logger.Named("lookup"),
		Observer: a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Favorites = a.openFavorites(ctx)
	return a, nil
}

// openPlanned picks the planned source: a PostgreSQL import, a static GTFS
// zip, or (nil results) the upstream API. The static source is also returned
// so GTFS-RT rows can borrow its route names and timetable.
func (a *App) openPlanned(ctx context.Context) (feed.StopFinder, feed.PlannedSource, *gtfs.Source, error) {
	g := a.Feed.GTFS
	switch {
	case g.DatabaseURL != "":
		db, err := gtfsdb.Open(g.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open gtfs database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := gtfsdb.Ping(ctx, db); err != nil {
			a.Logger.Warn("gtfs database not reachable yet", zap.Error(err))
		}
		a.checks = append(a.checks, HealthCheck{Name: "gtfs-database", Check: pingCheck(db)})
		src := gtfsdb.NewSource(db, nil, a.Logger.Named("gtfsdb"))
		a.Logger.Info("planned arrivals from database")
		return src, src, nil, nil

	case g.Path != "" || g.StaticURL != "":
		idx, err := gtfs.Open(ctx, gtfs.OpenOptions{
			URL:        g.StaticURL,
			Path:       g.Path,
			CachePath:  g.CachePath,
			HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		}, a.Logger.Named("gtfs"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open static gtfs: %w", err)
		}
		src := gtfs.NewSource(idx)
		a.Logger.Info("planned arrivals from static GTFS")
		return src, src, src, nil
	}
	a.Logger.Info("planned arrivals from upstream API")
	return nil, nil, nil, nil
}

func pingCheck(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error { return gtfsdb.Ping(ctx, db) }
}

// openFavorites builds the favorites owner. Storage and NATS are optional;
// failures leave an in-memory store.
func (a *App) openFavorites(ctx context.Context) *favorites.Manager {
	opts := favorites.Options{Logger: a.Logger.Named("favorites")}

	if path := a.Config.Favorites.DBPath; path != "" {
		db, err := favorites.OpenSQLite(ctx, path)
		if err != nil {
			a.Logger.Warn("favorites storage unavailable, keeping them in memory", zap.String("path", path), zap.Error(err))
		} else {
			opts.Persister = db
			a.closers = append(a.closers, func() { _ = db.Close() })
		}
	}

	var b *favorites.Broadcaster
	if url := a.Config.Favorites.NATSURL; url != "" {
		opts.InstanceID = uuid.NewString()
		var err error
		b, err = favorites.ConnectBroadcaster(url, opts.InstanceID, a.Logger.Named("favorites"))
		if err != nil {
			a.Logger.Warn("favorites sync disabled", zap.Error(err))
			b = nil
		} else {
			opts.Notifier = b
			a.closers = append(a.closers, b.Close)
		}
	}

	m := favorites.NewManager(ctx, opts)
	if b != nil {
		err := b.Listen(func(c favorites.Change) {
			a.Logger.Debug("favorites changed elsewhere", zap.String("scope", string(c.Scope)), zap.String("origin", c.Origin))
			m.Reload(context.Background())
		})
		if err != nil {
			a.Logger.Warn("favorites sync listen failed", zap.Error(err))
		}
	}
	return m
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return NewAPI(APIOptions{
		Looker:      a.Service,
		Stops:       a.Favorites,
		Lines:       a.Favorites,
		Metrics:     a.Metrics.Handler(),
		Checks:      a.checks,
		Strategies:  a.Client.Strategies(),
		CORSOrigins: a.Config.Server.CORSOrigins,
		Logger:      a.Logger.Named("http"),
	}).Routes()
}

// NewBoard returns a board over the app's lookup service.
func (a *App) NewBoard(autoRefresh bool) *lookup.Board {
	return lookup.NewBoard(a.Service, lookup.BoardOptions{
		Interval:    config.Duration(a.Config.Lookup.RefreshIntervalMS),
		AutoRefresh: autoRefresh,
		Lines:       a.Favorites,
		Logger:      a.Logger.Named("board"),
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
