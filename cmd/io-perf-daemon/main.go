package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/vmartel/io-perf-monitor/internal/config"
	dbussvc "github.com/vmartel/io-perf-monitor/internal/dbus"
	"github.com/vmartel/io-perf-monitor/internal/metrics"
	"github.com/vmartel/io-perf-monitor/internal/perf"
	"github.com/vmartel/io-perf-monitor/internal/procfs"
	"github.com/vmartel/io-perf-monitor/internal/uidmap"
)

const defaultConfigPath = "/etc/io-perf-monitor/config.toml"

// topicHandler wraps an slog.Handler and filters records by a "topic" attribute.
// Records without a topic attribute always pass through (startup messages, errors).
// Records with a topic only pass if that topic is enabled.
type topicHandler struct {
	inner  slog.Handler
	topics map[string]bool
	topic  string // set when WithAttrs includes a "topic" key
}

func (h *topicHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.inner.Enabled(context.Background(), level)
}

func (h *topicHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.topics["all"] {
		return h.inner.Handle(ctx, r)
	}
	topic := h.topic
	if topic == "" {
		// Check record-level attrs as fallback.
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "topic" {
				topic = a.Value.String()
				return false
			}
			return true
		})
	}
	if topic != "" && !h.topics[topic] {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *topicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	topic := h.topic
	for _, a := range attrs {
		if a.Key == "topic" {
			topic = a.Value.String()
		}
	}
	return &topicHandler{inner: h.inner.WithAttrs(attrs), topics: h.topics, topic: topic}
}

func (h *topicHandler) WithGroup(name string) slog.Handler {
	return &topicHandler{inner: h.inner.WithGroup(name), topics: h.topics, topic: h.topic}
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the TOML configuration file")
	verbose := flag.Bool("verbose", false, "enable all verbose logging (equivalent to -log=all)")
	logFlag := flag.String("log", "", "comma-separated log topics: engine (or 'all')")
	flag.Parse()

	topics := make(map[string]bool)
	if *verbose {
		topics["all"] = true
	}
	if *logFlag != "" {
		for _, t := range strings.Split(*logFlag, ",") {
			topics[strings.TrimSpace(t)] = true
		}
	}

	handler := &topicHandler{
		inner:  slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		topics: topics,
	}
	logger := slog.New(handler)
	engineLog := logger.With("topic", "engine")

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no config file, using defaults", "path", *configPath)
		cfg = config.DefaultConfig()
	} else if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	coll := perf.New(
		perf.Options{
			TopN:               cfg.Collection.TopPerCategory,
			BootInterval:       time.Duration(cfg.Collection.BootIntervalSeconds) * time.Second,
			PeriodicInterval:   time.Duration(cfg.Collection.PeriodicIntervalSeconds) * time.Second,
			PeriodicBufferSize: cfg.Collection.PeriodicBufferSize,
		},
		procfs.NewUidIoReader(cfg.Proc.Root),
		procfs.NewSystemStatReader(cfg.Proc.Root),
		procfs.NewProcessStatReader(cfg.Proc.Root),
		uidmap.NewResolver(),
		engineLog,
	)

	if err := coll.Start(); err != nil {
		logger.Error("start collection", "err", err)
		os.Exit(1)
	}
	defer coll.Terminate()

	if cfg.DBus.Enabled {
		svc := dbussvc.NewService(coll)
		conn, err := svc.Export()
		if err != nil {
			logger.Error("export dbus service", "err", err)
			os.Exit(1)
		}
		defer conn.Close()
		logger.Info("D-Bus service registered", "name", "org.ioperf.Monitor")
	}

	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		logger.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("systemd notify", "err", err)
	}

	// The boot window bounds boot-time collection when no integrator
	// signals boot completion over D-Bus.
	var bootCh <-chan time.Time
	if cfg.Collection.BootWindowSeconds > 0 {
		bootTimer := time.NewTimer(time.Duration(cfg.Collection.BootWindowSeconds) * time.Second)
		defer bootTimer.Stop()
		bootCh = bootTimer.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	logger.Info("io-perf-daemon started",
		"boot_interval_secs", cfg.Collection.BootIntervalSeconds,
		"periodic_interval_secs", cfg.Collection.PeriodicIntervalSeconds)
	for {
		select {
		case <-bootCh:
			bootCh = nil
			if err := coll.OnBootFinished(); err != nil {
				logger.Warn("boot window elapsed but collection not in boot-time", "err", err)
			}
		case sig := <-sigCh:
			if sig == syscall.SIGUSR1 {
				if err := coll.Dump(os.Stdout, nil); err != nil {
					logger.Error("dump", "err", err)
				}
				continue
			}
			logger.Info("shutting down", "signal", sig.String())
			if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
				logger.Warn("systemd notify", "err", err)
			}
			if metricsSrv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = metricsSrv.Shutdown(ctx)
				cancel()
			}
			return
		}
	}
}
