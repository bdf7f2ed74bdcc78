package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"notify_poller/internal/bridge"
	"notify_poller/internal/checkpoint"
	"notify_poller/internal/client"
	"notify_poller/internal/config"
	"notify_poller/internal/remote"
)

func provideTokens(cfg *config.Watcher, logger *zap.Logger) (remote.TokenSource, error) {
	if cfg.Credentials.Source != "keyring" {
		return remote.StaticToken(cfg.Credentials.Token), nil
	}
	ring, err := remote.OpenKeyring(cfg.Credentials.Service, cfg.Credentials.FileDir)
	if err != nil {
		logger.Error("keyring open failed", zap.String("service", cfg.Credentials.Service), zap.Error(err))
		return nil, err
	}
	// A token on the command line or in the config is saved for later runs.
	if cfg.Credentials.Token != "" && cfg.UserID != "" {
		if err := ring.Store(cfg.UserID, cfg.Credentials.Token); err != nil {
			return nil, err
		}
	}
	return ring, nil
}

func provideRemote(cfg *config.Watcher, tokens remote.TokenSource, logger *zap.Logger) *remote.Client {
	return remote.NewClient(cfg.APIURL, tokens, logger)
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func provideMetrics(reg *prometheus.Registry) *client.Metrics {
	return client.NewMetrics(reg)
}

func providePlatform(cfg *config.Watcher, logger *zap.Logger) bridge.Platform {
	perm := bridge.ParsePermission(cfg.Platform.Permission)
	switch cfg.Platform.Kind {
	case "exec":
		p := bridge.NewExecPlatform(cfg.Platform.Command, perm)
		if !p.Supported() {
			logger.Warn("platform notifier not found, platform notifications disabled", zap.String("command", cfg.Platform.Command))
		}
		return p
	case "log":
		return bridge.NewLogPlatform(logger.Named("platform"), perm, nil)
	default:
		return bridge.NewUnsupported()
	}
}

func provideBridge(cfg *config.Watcher, platform bridge.Platform, metrics *client.Metrics, logger *zap.Logger) *bridge.Bridge {
	var limiter *rate.Limiter
	if cfg.Platform.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Platform.RatePerMinute/60), max(cfg.Platform.Burst, 1))
	}
	b := bridge.New(platform, limiter, logger)
	b.OnShown(metrics.Shown)
	return b
}

func provideClient(cfg *config.Watcher, store *remote.Client, checkpoints checkpoint.Store, notifier *bridge.Bridge, metrics *client.Metrics, logger *zap.Logger) *client.Client {
	return client.New(store, checkpoints, notifier, logger,
		client.WithInterval(cfg.PollInterval),
		client.WithFetchTimeout(cfg.FetchTimeout),
		client.WithMetrics(metrics),
	)
}

func requireUser(cfg *config.Watcher) error {
	if cfg.UserID == "" {
		return fmt.Errorf("user id is required: pass --user or set user_id")
	}
	return nil
}
