// Command cart-recovery serves the webhook ingestion endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cartrecovery "github.com/goliatone/go-cart-recovery"
	"github.com/goliatone/go-cart-recovery/adapters/slogger"
	"github.com/goliatone/go-cart-recovery/core"
)

func main() {
	configPath := flag.String("config", os.Getenv("CART_RECOVERY_CONFIG"), "path to a JSON config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := slogger.New("cart-recovery", *debug)
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

	mux := http.NewServeMux()
	mux.Handle(cfg.HTTP.WebhookPath, app.WebhookHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("webhook endpoint listening",
		"addr", cfg.HTTP.Addr,
		"path", cfg.HTTP.WebhookPath,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", "error", err.Error())
	}
	logger.Info("webhook endpoint stopped")
}
