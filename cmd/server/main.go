package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/api"
	"github.com/TimurManjosov/flagedge/internal/backend"
	"github.com/TimurManjosov/flagedge/internal/background"
	"github.com/TimurManjosov/flagedge/internal/config"
	"github.com/TimurManjosov/flagedge/internal/datafile"
	"github.com/TimurManjosov/flagedge/internal/decider"
	"github.com/TimurManjosov/flagedge/internal/decision"
	"github.com/TimurManjosov/flagedge/internal/events"
	"github.com/TimurManjosov/flagedge/internal/logging"
	"github.com/TimurManjosov/flagedge/internal/optimizely"
	"github.com/TimurManjosov/flagedge/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "json", os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.SDKKey == "" {
		log.Warn().Msg("OPTIMIZELY_SDK_KEY is not set; decision requests will fail until it is")
	}

	telemetry.Init()

	backends := backend.Default(cfg.EventTimeout)
	fetcher, err := datafile.NewFetcher(backends, cfg.DatafileCacheSize, datafile.WithBaseURL(cfg.DatafileBaseURL))
	if err != nil {
		log.Fatal().Err(err).Msg("datafile fetcher")
	}

	tracker := background.NewTracker(log)
	dispatcher := events.NewDispatcher(backends, tracker)

	engines := optimizely.NewFactory(log, decision.LogLevel(strings.ToLower(cfg.SDKLogLevel)))
	d := decider.New(fetcher, engines, dispatcher, decider.WithDatafileTTL(cfg.DatafileTTL))

	srvAPI := api.NewServer(d, cfg, log, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		RateLimitPerIP: cfg.RateLimitPerIP,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	metricsSrv := newMetricsServer(cfg.MetricsAddr)

	go serve(log, "api", srv)
	go serve(log, "metrics", metricsSrv)
	go reportBackgroundTasks(tracker)
	go purgeOnHangup(log, cfg, fetcher)

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShut, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	if err := tracker.Drain(ctxShut); err != nil {
		log.Warn().Err(err).Msg("background work did not settle before shutdown")
	}
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadTimeout: 3 * time.Second}
}

func serve(log zerolog.Logger, name string, srv *http.Server) {
	log.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Str("server", name).Msg("server")
	}
}

// purgeOnHangup drops the cached datafile of the current SDK key on SIGHUP, so the next
// request refetches it from the CDN.
func purgeOnHangup(log zerolog.Logger, cfg *config.Config, fetcher *datafile.Fetcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		key := cfg.Request().SDKKey
		fetcher.Purge(key)
		log.Info().Str("sdk_key", key).Msg("datafile cache purged")
	}
}

func reportBackgroundTasks(tracker *background.Tracker) {
	for range time.Tick(5 * time.Second) {
		telemetry.BackgroundTasks.Set(float64(tracker.InFlight()))
	}
}
