package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jarfeed/internal/adapter/repo"
	"jarfeed/internal/config"
	"jarfeed/internal/http/handlers"
	httpapi "jarfeed/internal/http/httpapi"
	"jarfeed/internal/infra"
	"jarfeed/internal/infra/geoip"
	"jarfeed/internal/ingest"
	"jarfeed/internal/monobank"
	"jarfeed/internal/poller"
	"jarfeed/internal/query"
	"jarfeed/internal/realtime"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so they complete before the process exits.
func run() int {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.DBDriver).Msg("failed to initialize donation store")
		return 1
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("donation store ready")

	var countryLookup func(ip string) (string, error)
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable, country lookup disabled")
		} else {
			defer resolver.Close()
			countryLookup = resolver.Lookup()
		}
	}

	hub := realtime.NewHub(realtime.Options{AllowedOrigins: cfg.AllowedOrigins, Country: countryLookup}, logger)
	shadow := ingest.NewShadow()
	pipeline := ingest.NewPipeline(store, shadow, hub, logger)

	restored, err := store.LoadAll(ctx, cfg.RehydrateLimit)
	if err != nil {
		logger.Error().Err(err).Msg("rehydrate failed, starting with empty in-memory state")
	} else {
		pipeline.Rehydrate(restored)
	}

	app := &handlers.App{
		Queries:     query.NewFacade(store, shadow, logger),
		Ingest:      pipeline,
		JarTarget:   func() (string, string) { return cfg.JarTitle, cfg.JarID },
		Location:    cfg.Location(),
		Subscribers: hub.Count,
		Logger:      logger,
	}

	var poll *poller.Poller
	if cfg.BankEnabled() {
		client := monobank.NewClient(monobank.Options{BaseURL: cfg.MonoBaseURL, Token: cfg.MonoToken, Timeout: cfg.BankTimeout})
		cache := monobank.NewClientInfoCache(client, cfg.ClientInfoTTL, logger)
		gate := monobank.NewStatementGate(client, cfg.StatementInterval, logger)
		poll = poller.New(cache, gate, pipeline, poller.Options{
			JarTitle:        cfg.JarTitle,
			JarID:           cfg.JarID,
			Interval:        cfg.PollInterval,
			StatementWindow: cfg.StatementWindow,
			SteadyWindow:    cfg.SteadyStateWindow,
			BootstrapLimit:  cfg.BootstrapLimit,
			AnonymousName:   cfg.AnonymousName,
			UnknownSender:   cfg.UnknownSenderName,
		}, logger)
		if len(restored) > 0 {
			poll.SetLastSeen(restored[0].ID)
		}
		app.Jars = cache
		app.JarTarget = poll.Target
	} else {
		logger.Warn().Msg("MONO_TOKEN not set, bank polling disabled")
	}

	if cfg.ConfigFile != "" {
		if stopWatch := watchOverlay(cfg.ConfigFile, poll, logger); stopWatch != nil {
			defer stopWatch()
		}
	}

	router := httpapi.NewRouter(httpapi.Deps{
		App:      app,
		Config:   cfg,
		Realtime: hub.ServeWS,
		Country:  countryLookup,
		Logger:   logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	if poll != nil {
		g.Go(func() error { return poll.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info().Msgf("API listening on %s", server.Addr())
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error().Err(runErr).Msg("server stopped with error")
	}

	hub.Close()
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close donation store")
	}
	logger.Info().Msg("server stopped")
	if runErr != nil {
		return 1
	}
	return 0
}

// watchOverlay applies the YAML overlay to the poller and keeps it applied on
// every change. It returns nil when the overlay cannot be used.
func watchOverlay(path string, poll *poller.Poller, logger zerolog.Logger) func() {
	if poll == nil {
		logger.Warn().Str("path", path).Msg("config overlay ignored, bank polling disabled")
		return nil
	}
	loader, err := config.NewLoader(path, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("config overlay unavailable")
		return nil
	}
	apply := func(o config.Overlay) {
		if o.Jar.Title != "" || o.Jar.ID != "" {
			poll.SetTarget(o.Jar.Title, o.Jar.ID)
		}
	}
	apply(loader.Overlay())
	loader.OnChange(apply)

	stop, err := loader.Watch()
	if err != nil {
		logger.Warn().Err(err).Msg("config overlay loaded but not watched")
		return nil
	}
	return stop
}
