package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"swaproute/config"
	"swaproute/core/events"
	"swaproute/core/state"
	"swaproute/gateway"
	"swaproute/host"
	"swaproute/native/feetable"
	"swaproute/native/router"
	"swaproute/observability"
	"swaproute/observability/logging"
	"swaproute/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "routerd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "routerd.toml", "path to the TOML configuration")
		listenFlag = flag.String("listen", "", "override the configured listen address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenFlag != "" {
		cfg.ListenAddress = *listenFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logOut io.Writer
	if strings.TrimSpace(cfg.Log.File) != "" {
		logOut = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	log := logging.Setup(logging.Options{
		Service: "routerd",
		Env:     cfg.Log.Env,
		Level:   logging.ParseLevel(cfg.Log.Level),
		Output:  logOut,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "router"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	kv := state.NewStore(db)

	table := feetable.NewTable(kv)
	if _, err := table.Current(); errors.Is(err, feetable.ErrNotInitialized) {
		if err := table.Init(feetable.Config{
			Admin:        cfg.AdminAddress,
			FeeCollector: cfg.FeeCollector,
			Adapter:      cfg.AdapterAddress,
		}); err != nil {
			return fmt.Errorf("initialize fee table: %w", err)
		}
		log.Info("fee table initialized", "admin", cfg.AdminAddress)
	} else if err != nil {
		return fmt.Errorf("read fee table: %w", err)
	}

	engine := router.NewEngine(kv, table, router.Config{
		SelfAddress:    cfg.SelfAddress,
		FeeCollector:   cfg.FeeCollector,
		AdapterAddress: cfg.AdapterAddress,
	})

	registry := prometheus.NewRegistry()
	metrics := observability.Metrics(registry)

	adapter := host.NewHTTPAdapterClient(cfg.AdapterEndpoint)
	bank := host.NewHTTPBankClient(cfg.BankEndpoint)
	h := host.New(engine, adapter, bank, events.NoopEmitter{}, metrics, log)
	querier := host.NewQuerierRegistry()
	for _, venue := range cfg.Venues {
		client := host.NewHTTPVenueClient(venue.Endpoint)
		h.RegisterVenue(venue.Address, client)
		querier.Register(venue.Address, client)
		log.Info("venue registered", "address", venue.Address, "kind", venue.Kind)
	}

	srv := gateway.NewServer(gateway.Options{
		Executor:  h,
		Recoverer: h,
		Table:     table,
		Querier:   querier,
		Metrics:   metrics,
		Gatherer:  registry,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		Log:       log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "address", cfg.ListenAddress)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
