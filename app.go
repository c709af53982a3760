// Package cartrecovery wires the abandoned-cart pipeline: webhook ingestion
// into durable cart state, the scheduled recheck that settles carts as
// converted or abandoned, and the optional Kafka relay.
package cartrecovery

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-cart-recovery/core"
	"github.com/goliatone/go-cart-recovery/mail"
	"github.com/goliatone/go-cart-recovery/relay"
	"github.com/goliatone/go-cart-recovery/shopify"
	sqlstore "github.com/goliatone/go-cart-recovery/store/sql"
	"github.com/goliatone/go-cart-recovery/webhooks"
)

// App owns the shared infrastructure both processes build on: storage,
// stores, and the ingestion path. Process-specific pieces (recheck
// pipeline, relay consumer) hang off it.
type App struct {
	cfg      core.Config
	logger   core.Logger
	client   *persistence.Client
	stores   *sqlstore.RepositoryFactory
	producer *relay.Producer
	ingest   *core.IngestHandler
	webhook  *webhooks.Handler
}

func NewApp(ctx context.Context, cfg core.Config, logger core.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = glog.Nop()
	}

	client, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	app := &App{
		cfg:    cfg,
		logger: logger,
		client: client,
		stores: stores,
	}

	if cfg.Relay.Enabled {
		producer, err := relay.NewProducer(cfg.Relay.Brokers, cfg.Relay.Topic)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		app.producer = producer.WithLogger(logger)
	}

	directory, err := shopify.NewCustomerDirectory(app.shopifyClient())
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	directory.PageSize = cfg.Shopify.DirectoryPageSize

	ingest, err := core.NewIngestHandler(stores.CartStore())
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	ingest.Directory = directory
	ingest.Logger = logger
	if app.producer != nil {
		ingest.Publisher = app.producer
	}
	app.ingest = ingest

	webhook, err := webhooks.NewHandler(webhooks.NewShopifyVerifier(cfg.Webhook.Secret), ingest)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	webhook.Ledger = stores.WebhookDeliveryStore()
	webhook.Logger = logger
	if cfg.Webhook.MaxBodyBytes > 0 {
		webhook.MaxBodyBytes = cfg.Webhook.MaxBodyBytes
	}
	app.webhook = webhook

	return app, nil
}

// WebhookHandler is the HTTP entry point for platform deliveries.
func (a *App) WebhookHandler() http.Handler {
	return a.webhook
}

func (a *App) Stores() *sqlstore.RepositoryFactory {
	return a.stores
}

// RecheckService builds the conversion-or-notify pipeline for the worker
// process. The mail configuration is only required here, not for ingestion.
func (a *App) RecheckService() (*core.RecheckService, error) {
	dispatcher, err := mail.NewSendGridDispatcher(mail.Config{
		APIKey:            a.cfg.Mail.APIKey,
		FromAddress:       a.cfg.Mail.FromAddress,
		FromName:          a.cfg.Mail.FromName,
		FallbackRecipient: a.cfg.Mail.FallbackRecipient,
	})
	if err != nil {
		return nil, err
	}
	checker, err := shopify.NewOrderChecker(a.shopifyClient())
	if err != nil {
		return nil, err
	}

	service, err := core.NewRecheckService(
		a.stores.CartStore(),
		a.stores.NotificationDispatchStore(),
		checker,
		dispatcher.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	service.Logger = a.logger
	service.Window = a.cfg.Recovery.AbandonmentWindow()
	service.BatchSize = a.cfg.Recovery.BatchSize
	return service, nil
}

// Consumer builds the relay consumer; it errors when the relay is disabled.
func (a *App) Consumer() (*relay.Consumer, error) {
	if !a.cfg.Relay.Enabled {
		return nil, fmt.Errorf("cartrecovery: relay is not enabled")
	}
	consumer, err := relay.NewConsumer(relay.ConsumerConfig{
		Brokers: a.cfg.Relay.Brokers,
		Topic:   a.cfg.Relay.Topic,
		GroupID: a.cfg.Relay.GroupID,
	}, a.stores.CartStore())
	if err != nil {
		return nil, err
	}
	return consumer.WithLogger(a.logger), nil
}

func (a *App) Close() error {
	var firstErr error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			firstErr = err
		}
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) shopifyClient() *shopify.Client {
	client := &shopify.Client{
		HTTP:       &http.Client{Timeout: a.cfg.Shopify.RequestTimeout()},
		Tokens:     tokenResolver{static: a.cfg.Shopify.AccessTokens, store: a.stores.ShopStore()},
		APIVersion: a.cfg.Shopify.APIVersion,
		Logger:     a.logger,
	}
	return client
}

// tokenResolver prefers statically configured tokens and falls back to the
// shop store populated by the install flow.
type tokenResolver struct {
	static map[string]string
	store  core.ShopTokenStore
}

func (r tokenResolver) AccessToken(ctx context.Context, shop string) (string, error) {
	if token, ok := r.static[strings.TrimSpace(shop)]; ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), nil
	}
	if r.store == nil {
		return "", fmt.Errorf("cartrecovery: no access token source for shop %q", shop)
	}
	return r.store.AccessToken(ctx, shop)
}

func openStorage(ctx context.Context, cfg core.StorageConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))

	var (
		sqlDriver string
		dialect   schema.Dialect
		tree      string
	)
	switch driver {
	case "postgres", "postgresql":
		sqlDriver = "postgres"
		dialect = pgdialect.New()
		tree = "data/sql/migrations"
	case "sqlite", "sqlite3":
		sqlDriver = "sqlite3"
		dialect = sqlitedialect.New()
		tree = "data/sql/migrations/sqlite"
	default:
		return nil, fmt.Errorf("cartrecovery: unsupported storage driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(sqlDriver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("cartrecovery: open database: %w", err)
	}
	if sqlDriver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	migrationFS, err := fs.Sub(GetMigrationsFS(), tree)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cartrecovery: resolve migration tree: %w", err)
	}
	client.RegisterSQLMigrations(migrationFS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cartrecovery: apply migrations: %w", err)
	}
	return client, nil
}
