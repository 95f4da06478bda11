package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"WatchSentinel/internal/alert"
	"WatchSentinel/internal/collector"
	"WatchSentinel/internal/config"
	"WatchSentinel/internal/httpapi"
	"WatchSentinel/internal/instrumentation"
	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
	"WatchSentinel/internal/notifier"
	"WatchSentinel/internal/recorder"
	"WatchSentinel/internal/scheduler"
	"WatchSentinel/internal/storage"
	"WatchSentinel/internal/watchlist"
)

func main() {
	log := logger.Get().WithComponent("main")

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("load .env")
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("config validation")
	}
	if err := logger.Get().Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAgeDays); err != nil {
		log.WithError(err).Fatal("configure logger")
	}
	log.Info("WatchSentinel starting")

	// Persistence
	files, err := storage.NewFileStore(cfg.Storage.StateDir)
	if err != nil {
		log.WithError(err).Fatal("init state store")
	}
	wl := watchlist.NewStore(files)
	if err := wl.Load(false); err != nil {
		log.WithError(err).Fatal("load watchlist")
	}
	defer wl.Close()
	alerts := alert.NewStore(files, wl)
	if err := alerts.Load(); err != nil {
		log.WithError(err).Fatal("load alerts")
	}

	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Quote source
	src := newSource(cfg)
	log.WithField("source", src.Name()).Info("quote source selected")
	col := collector.NewCollector(src, cfg.Source.BatchSize, cfg.Source.RatePerSec)

	// Notification channels
	router := notifier.NewRouter()
	router.Register(model.ChannelTray, notifier.NewTraySink())
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Source.Proxy)
		router.Register(model.ChannelDesktop, tn)
	} else {
		log.Warn("telegram not configured, desktop notifications will fail")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := instrumentation.NewMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(scheduler.Deps{
		Collector: col,
		Watchlist: wl,
		Alerts:    alerts,
		Engine:    alert.NewEngine(alerts),
		Router:    router,
		Recorder:  rec,
		Metrics:   metrics,

		HistoryRetention: time.Duration(cfg.Storage.HistoryDays) * 24 * time.Hour,
	})
	if err := sched.RegisterAll(cfg.Alerts.ResetCron, cfg.Alerts.GCCron); err != nil {
		log.WithError(err).Fatal("register cron tasks")
	}
	if err := sched.Start(ctx, scheduler.Options{
		Enabled:   *cfg.Poll.Enabled,
		Immediate: *cfg.Poll.Immediate,
		Interval:  cfg.Poll.Interval,
	}); err != nil {
		log.WithError(err).Fatal("start scheduler")
	}

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Watchlist: wl,
			Alerts:    alerts,
			Poller:    sched.Poller,
			Refresh:   sched.Refresh,
			Gatherer:  reg,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("http api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped")
		}
	}()

	log.Info("WatchSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.WithField("signal", sig.String()).Info("shutdown signal received, stopping")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	cancel()
	sched.Stop()
	log.Info("WatchSentinel stopped")
}

// newSource builds the configured quote source. The mock source quotes every
// code flat at 100 until changed.
func newSource(cfg *config.Config) collector.Source {
	switch cfg.Source.Kind {
	case "yahoo":
		return collector.NewYahooSource(cfg.Source.Proxy, cfg.Source.Timeout)
	case "mock":
		m := collector.NewMockSource()
		m.SetDefaultPrice(100)
		return m
	default:
		return collector.NewSinaSource(cfg.Source.Proxy, cfg.Source.Timeout)
	}
}
