//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"notify_poller/internal/checkpoint"
	"notify_poller/internal/config"
	"notify_poller/internal/logging"
)

func InitializeWatcher(cfg *config.Watcher) (*watcher, error) {
	wire.Build(
		config.WatcherLogSettings,
		logging.New,
		provideTokens,
		provideRemote,
		checkpoint.NewStore,
		provideRegistry,
		provideMetrics,
		providePlatform,
		provideBridge,
		provideClient,
		newWatcher,
	)
	return &watcher{}, nil
}
