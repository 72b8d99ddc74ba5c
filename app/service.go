package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/kilianp07/flipnotify/api/deliveries"
	"github.com/kilianp07/flipnotify/api/sessions"
	"github.com/kilianp07/flipnotify/app/plugins"
	"github.com/kilianp07/flipnotify/config"
	"github.com/kilianp07/flipnotify/core/delay"
	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/ingest"
	coremon "github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/core/properties"
	"github.com/kilianp07/flipnotify/core/rules"
	"github.com/kilianp07/flipnotify/core/session"
	"github.com/kilianp07/flipnotify/core/tracking"
	"github.com/kilianp07/flipnotify/infra/logger"
	"github.com/kilianp07/flipnotify/infra/lookup"
	"github.com/kilianp07/flipnotify/infra/metrics"
	"github.com/kilianp07/flipnotify/infra/monitoring"
	"github.com/kilianp07/flipnotify/infra/tracing"
	"github.com/kilianp07/flipnotify/infra/ws"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

// housekeepingSpec drives Hub.HouseKeeping and the lookup cache pruning.
const housekeepingSpec = "@every 1m"

type visibilityLookup interface {
	flip.Lookup
	io.Closer
	Prune()
}

// Service wires the upstream source, the session hub and the HTTP surface.
type Service struct {
	Hub  *session.Hub
	Deps session.Deps

	cfg     *config.Config
	source  ingest.Source
	tracker tracking.Tracker
	lookup  visibilityLookup
	bus     *eventbus.Bus
	tracing *tracing.Provider
	monitor coremon.Monitor
	cron    *cron.Cron
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if !logger.SetLevel(cfg.Logging.Level) {
		return nil, fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	tp, err := tracing.NewProvider(cfg.Tracing, logger.Zerolog("tracing"))
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	tp.Install()

	tracker, err := plugins.NewTracker(cfg.Tracking.Sinks)
	if err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}

	var look visibilityLookup = nopLookup{}
	if cfg.Redis.Addr != "" {
		rl, err := lookup.NewRedisLookup(cfg.Redis)
		if err != nil {
			_ = tracker.Close()
			return nil, fmt.Errorf("redis lookup: %w", err)
		}
		look = rl
	}

	src, err := plugins.NewSource(cfg.Source)
	if err != nil {
		_ = tracker.Close()
		_ = look.Close()
		return nil, fmt.Errorf("source: %w", err)
	}

	bus := eventbus.New()
	hub := session.NewHub(logger.New("hub"), bus, nil)
	deps := session.Deps{
		Rules:     rules.Matcher{},
		Enricher:  flip.LookupEnricher{Lookup: look},
		Tracker:   tracker,
		Selector:  properties.NewSelector(properties.DefaultRatings),
		Snapshots: hub,
		Penalties: delay.NewStaticSource(cfg.Fairness.Static()),
		BaseDelay: cfg.Fairness.BaseDelay,
		Spam:      cfg.Spam,
		Bus:       bus,
		Logger:    logger.New("session"),
		Monitor:   mon,
		Tracer:    tp.Tracer("flipnotify"),
		Pipeline:  &cfg.Pipeline,
		Config:    &cfg.Session,
	}

	return &Service{
		Hub:     hub,
		Deps:    deps,
		cfg:     cfg,
		source:  src,
		tracker: tracker,
		lookup:  look,
		bus:     bus,
		tracing: tp,
		monitor: mon,
		cron:    cron.New(),
		log:     logg,
	}, nil
}

// Handler returns the HTTP surface. Sessions opened through it end when ctx
// is cancelled.
func (s *Service) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/ws", ws.NewHandler(ctx, s.Hub, s.Deps, s.cfg.DefaultSettings))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	sessions.Routes(r, s.Hub, s.cfg.Server.APIToken)
	if store, ok := deliveries.FindStore(s.tracker); ok {
		r.Handle("/api/deliveries", deliveries.NewHandler(store, s.cfg.Server.APIToken))
	}
	return r
}

// Run starts the source, the housekeeping schedule and the HTTP server, and
// blocks until the context is cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := s.cron.AddFunc(housekeepingSpec, s.houseKeeping); err != nil {
		return fmt.Errorf("housekeeping schedule: %w", err)
	}
	s.cron.Start()

	sink, err := metrics.NewPromSinkWithRegistry(nil, s.bus.Dropped)
	if err != nil {
		return fmt.Errorf("event metrics: %w", err)
	}
	metrics.StartEventCollector(ctx, s.bus, sink, logger.New("events"))

	srcErr := make(chan error, 1)
	go func() {
		defer s.monitor.Recover()
		srcErr <- s.source.Run(ctx, s.Hub)
	}()

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
	}
	httpErr := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srcErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("source: %w", err)
		}
	case err, ok := <-httpErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("http shutdown: %v", err)
	}
	<-s.cron.Stop().Done()
	s.Hub.Close()
	s.Hub.Wait()
	if err := s.tracing.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("tracing shutdown: %v", err)
	}
	s.monitor.Flush(2 * time.Second)
	return runErr
}

func (s *Service) houseKeeping() {
	defer s.monitor.Recover()
	s.Hub.HouseKeeping()
	s.lookup.Prune()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return errors.Join(s.source.Close(), s.tracker.Close(), s.lookup.Close())
}

// nopLookup serves sessions when no redis is configured.
type nopLookup struct{ lookup.NopLookup }

func (nopLookup) Close() error { return nil }
func (nopLookup) Prune()       {}
