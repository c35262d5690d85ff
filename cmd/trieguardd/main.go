// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command trieguardd loads the compiled XDP firewall program onto an
// interface and serves its control plane (HTTP rule API, Prometheus
// metrics) until signalled to stop.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"trieguard.dev/trieguard/internal/api"
	"trieguard.dev/trieguard/internal/config"
	"trieguard.dev/trieguard/internal/defaultaction"
	"trieguard.dev/trieguard/internal/firewall"
	"trieguard.dev/trieguard/internal/logging"
)

func main() {
	iface := flag.String("iface", "eth0", "network interface to attach the firewall to")
	configPath := flag.String("config", "/etc/trieguard/trieguard.hcl", "path to the HCL configuration file")
	objectPath := flag.String("object", "/usr/lib/trieguard/trieguard.o", "path to the compiled eBPF object (built by bpf2go)")
	verbose := flag.Bool("verbose", false, "log at debug level regardless of the configured logging.level")
	flag.Parse()

	os.Exit(run(*iface, *configPath, *objectPath, *verbose))
}

func run(iface, configPath, objectPath string, verbose bool) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.New(logging.Config{Level: logging.LevelError}).Error("failed to load configuration", "error", err)
		return 1
	}
	if cfg.Interface != "" {
		iface = cfg.Interface
	}

	logger := logging.New(logging.Config{
		Level: parseLevel(cfg.Logging.Level),
		JSON:  true,
	})
	if verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	object, err := loadObject(objectPath)
	if err != nil {
		logger.Error("failed to read eBPF object", "error", err)
		return 1
	}

	fw, err := firewall.Attach(iface, object, logger)
	if err != nil {
		logger.Error("failed to attach firewall", "interface", iface, "error", err)
		return 1
	}
	defer fw.Close()

	if cfg.DefaultAction == "accept" {
		_ = fw.SetDefaultAction(defaultaction.Accept)
	}

	var apiSrv *api.Server
	if cfg.API != nil && cfg.API.Enabled {
		apiSrv = api.New(fw, logger)
		go func() {
			logger.Info("control API listening", "addr", cfg.API.Listen)
			if err := apiSrv.ListenAndServe(cfg.API.Listen); err != nil && err != http.ErrServerClosed {
				logger.Error("control API stopped", "error", err)
			}
		}()
		defer apiSrv.Close()
	}

	var metricsSrv *http.Server
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(fw.MetricsCollectors()...)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer metricsSrv.Close()
	}

	logger.Info("trieguardd running", "interface", iface)
	waitForShutdown(logger)
	return 0
}

func waitForShutdown(logger *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
}

func loadObject(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func parseLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
