package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DavidGamba/go-getoptions"
	"go.uber.org/zap"
	"notify_poller/internal/config"
	"notify_poller/internal/telemetry"
)

type commandLineOptionValues struct {
	Config string
	User   string
	Token  string
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", config.DefaultWatcherPath(),
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))
	opt.StringVar(&optionValues.User, "user", "",
		opt.Alias("u"),
		opt.Description("the user to watch notifications for"))
	opt.StringVar(&optionValues.Token, "token", "",
		opt.Description("the bearer token; saved to the keyring when credentials.source is keyring"))

	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprint(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(2)
	}

	return optionValues
}

func main() {
	optionValues := parseCommandLine()

	cfg, err := config.LoadWatcher(optionValues.Config)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if optionValues.User != "" {
		cfg.UserID = optionValues.User
	}
	if optionValues.Token != "" {
		cfg.Credentials.Token = optionValues.Token
	}
	if err := requireUser(cfg); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}

	w, err := InitializeWatcher(cfg)
	if err != nil {
		log.Fatalf("init watcher: %v", err)
	}
	logger := w.Logger()
	defer func() {
		_ = logger.Sync()
	}()

	if err := w.Run(ctx); err != nil {
		logger.Error("watcher stopped", zap.Error(err))
	}
	if err := w.Close(); err != nil {
		logger.Error("checkpoint close error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", zap.Error(err))
	}
}
