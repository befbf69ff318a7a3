package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "ferret/internal/adapters/http"
	"ferret/internal/adapters/memory"
	pg "ferret/internal/adapters/postgres"
	"ferret/internal/advisor"
	"ferret/internal/config"
	"ferret/internal/logger"
	"ferret/internal/pipeline"
	"ferret/internal/ports"
	"ferret/internal/probes"
	"ferret/internal/report"
	jobsvc "ferret/internal/services/jobs"
)

func main() {
	cfg, cfgErr := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	if cfgErr != nil {
		log.Warnw("config", "warning", cfgErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store ports.Store
	if cfg.DatabaseURL != "" {
		if err := pg.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalw("migrations failed", "error", err)
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("db connect failed", "error", err)
		}
		defer db.Close()
		store = db
	} else {
		store = memory.New()
		log.Warnw("running with in-memory store; scans do not survive restarts")
	}

	pipe := pipeline.New(
		probes.NewDNSDiscoverer(cfg.DNSResolver),
		probes.NewHTTPProber(cfg.ProbeTimeout),
		probes.NewLinkEnumerator(cfg.ProbeTimeout),
		probes.NewHeaderAssessor(cfg.ProbeTimeout),
		pipeline.Config{Fanout: cfg.ProbeFanout, AssessHostCap: cfg.AssessHostCap},
		log,
	)

	adv := advisor.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, log)
	jobs := jobsvc.New(store, pipe, adv, log)
	reports := report.New(store)

	srv := httpadapter.New(jobs, reports, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Infow("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Infow("shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		log.Fatalw("server error", "error", err)
	}
}
