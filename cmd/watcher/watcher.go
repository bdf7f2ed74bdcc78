package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"notify_poller/internal/checkpoint"
	"notify_poller/internal/client"
	"notify_poller/internal/config"
	"notify_poller/internal/listener"
)

type watcher struct {
	cfg         *config.Watcher
	client      *client.Client
	checkpoints checkpoint.Store
	registry    *prometheus.Registry
	logger      *zap.Logger
}

func newWatcher(cfg *config.Watcher, c *client.Client, checkpoints checkpoint.Store, reg *prometheus.Registry, logger *zap.Logger) *watcher {
	return &watcher{cfg: cfg, client: c, checkpoints: checkpoints, registry: reg, logger: logger}
}

func (w *watcher) Logger() *zap.Logger {
	return w.logger
}

// Run polls for the configured user until ctx is done.
func (w *watcher) Run(ctx context.Context) error {
	unsubscribe := w.client.OnNotification(listener.ListenerFunc(w.logEvent))
	defer unsubscribe()

	if err := w.client.Initialize(w.cfg.UserID); err != nil {
		return err
	}
	defer w.client.Reset()

	var metricsSrv *http.Server
	if w.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: w.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		w.logger.Info("metrics listening", zap.String("addr", w.cfg.MetricsAddr))
	}

	w.logger.Info("watching notifications",
		zap.String("user_id", w.cfg.UserID),
		zap.String("api_url", w.cfg.APIURL),
		zap.Int("unread", w.client.UnreadCount(ctx)),
	)

	<-ctx.Done()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			w.logger.Error("metrics shutdown error", zap.Error(err))
		}
	}
	return nil
}

func (w *watcher) Close() error {
	return w.checkpoints.Close()
}

func (w *watcher) logEvent(e listener.Event) {
	fields := []zap.Field{zap.String("event", e.Kind.String())}
	if e.ID != "" {
		fields = append(fields, zap.String("notification_id", e.ID))
	}
	if e.Kind == listener.EventCreated {
		fields = append(fields,
			zap.String("type", string(e.Notification.Type)),
			zap.String("title", e.Notification.Title()),
			zap.String("message", e.Notification.Message()),
			zap.Time("created_at", e.Notification.CreatedAt),
		)
	}
	w.logger.Info("notification event", fields...)
}
