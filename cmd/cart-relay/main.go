// Command cart-relay runs the background half of the pipeline: the relay
// consumer (when enabled) and the scheduled abandonment recheck.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	cartrecovery "github.com/goliatone/go-cart-recovery"
	"github.com/goliatone/go-cart-recovery/adapters/slogger"
	"github.com/goliatone/go-cart-recovery/core"
	"github.com/goliatone/go-cart-recovery/scheduler"
)

func main() {
	configPath := flag.String("config", os.Getenv("CART_RECOVERY_CONFIG"), "path to a JSON config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := slogger.New("cart-relay", *debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := core.NewCfgxConfigProvider(core.FileConfigLoader(*configPath))
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		logger.Fatal("load configuration", "error", err.Error())
	}

	app, err := cartrecovery.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build application", "error", err.Error())
	}
	defer func() { _ = app.Close() }()

	recheck, err := app.RecheckService()
	if err != nil {
		logger.Fatal("build recheck pipeline", "error", err.Error())
	}
	ticker, err := scheduler.New(recheck, cfg.Recovery.RecheckInterval())
	if err != nil {
		logger.Fatal("build scheduler", "error", err.Error())
	}
	if err := ticker.WithLogger(logger).Start(ctx); err != nil {
		logger.Fatal("start scheduler", "error", err.Error())
	}
	defer ticker.Stop()

	if cfg.Relay.Enabled {
		consumer, err := app.Consumer()
		if err != nil {
			logger.Fatal("build relay consumer", "error", err.Error())
		}
		defer func() { _ = consumer.Close() }()

		logger.Info("relay consumer starting",
			"topic", cfg.Relay.Topic,
			"group", cfg.Relay.GroupID,
		)
		if err := consumer.Run(ctx); err != nil {
			logger.Fatal("relay consumer failed", "error", err.Error())
		}
	} else {
		logger.Info("relay disabled, running recheck schedule only")
		<-ctx.Done()
	}
	logger.Info("worker stopped")
}
