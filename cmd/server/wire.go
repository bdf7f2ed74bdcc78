//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"notify_poller/internal/app"
	"notify_poller/internal/config"
	"notify_poller/internal/http"
	"notify_poller/internal/http/controller"
	"notify_poller/internal/logging"
	"notify_poller/internal/queue/rabbitmq"
	"notify_poller/internal/service/notify"
	"notify_poller/internal/store"
)

func InitializeApp(cfg *config.Config) (*app.App, error) {
	wire.Build(
		config.LogSettings,
		logging.New,
		store.NewStore,
		notify.NewService,
		controller.NewHandler,
		http.NewRouter,
		rabbitmq.NewConsumer,
		rabbitmq.NewPublisher,
		app.NewApp,
	)
	return &app.App{}, nil
}
