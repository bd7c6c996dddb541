package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-warehouse-fulfillment/internal/config"
	"go-warehouse-fulfillment/internal/event"
	"go-warehouse-fulfillment/internal/handler"
	"go-warehouse-fulfillment/internal/repository"
	"go-warehouse-fulfillment/internal/service"
	"go-warehouse-fulfillment/internal/ws"
	"go-warehouse-fulfillment/pkg/database"
	"go-warehouse-fulfillment/pkg/observability"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds the long-lived resources and the wired services.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	Hub    *ws.Hub

	Capacity    service.CapacityService
	Ledger      service.LedgerService
	Picking     service.PickingService
	Fulfillment service.FulfillmentService

	kafka        *event.KafkaPublisher
	otelShutdown observability.ShutdownFunc
}

// New loads nothing itself: cfg is already decoded. It opens the database,
// optional redis and kafka clients, and wires the services.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	shutdown, otelErr := observability.Setup(ctx, cfg)
	c.otelShutdown = shutdown
	c.Logger = observability.NewLogger(config.ServiceName, cfg.LogLevel, cfg.OtelEnabled())
	if otelErr != nil {
		c.Logger.Error("failed to setup OpenTelemetry", zap.Error(otelErr))
	}

	db, err := database.Connect(cfg, c.Logger)
	if err != nil {
		return nil, err
	}
	c.DB = db

	if cfg.RedisAddr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			// the item cache degrades to direct reads
			c.Logger.Warn("redis unreachable, item cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			c.Redis.Close()
			c.Redis = nil
		}
	}

	c.Hub = ws.NewHub(c.Logger)
	publishers := event.Multi{event.NewHubPublisher(c.Hub)}
	if cfg.KafkaEnabled() {
		c.kafka = event.NewKafkaPublisher(event.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, c.Logger), c.Logger)
		publishers = append(publishers, c.kafka)
		c.Logger.Info("kafka event sink enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	c.wire(publishers)
	return c, nil
}

func (c *Container) wire(events event.Publisher) {
	locationRepo := repository.NewLocationRepo()
	inventoryRepo := repository.NewInventoryRepo()
	pickingRepo := repository.NewPickingRepo()
	salesOrderRepo := repository.NewSalesOrderRepo()
	auditRepo := repository.NewAuditRepo()
	itemRepo := repository.NewCachedItemRepo(repository.NewItemRepo(c.DB), c.Redis, c.Config.ItemCacheTTL, c.Logger)
	customerRepo := repository.NewCustomerRepo(c.DB)

	c.Capacity = service.NewCapacityService(c.DB, locationRepo, inventoryRepo, auditRepo, events, c.Logger, c.Config.NearFullThreshold)
	c.Ledger = service.NewLedgerService(c.DB, inventoryRepo, c.Capacity, auditRepo, events, c.Logger)
	c.Picking = service.NewPickingService(c.DB, pickingRepo, salesOrderRepo, c.Ledger, auditRepo, events, c.Logger)
	c.Fulfillment = service.NewFulfillmentService(c.DB, salesOrderRepo, pickingRepo, locationRepo,
		itemRepo, customerRepo, c.Ledger, c.Picking, auditRepo, events, c.Logger)
}

// Handlers builds the HTTP layer on top of the services.
func (c *Container) Handlers() handler.Handlers {
	retry := handler.Retrier{Attempts: c.Config.ConflictRetries, Backoff: c.Config.ConflictBackoff}
	return handler.Handlers{
		Picking:    handler.NewPickingHandler(c.Picking, retry),
		SalesOrder: handler.NewSalesOrderHandler(c.Fulfillment, retry),
		Location:   handler.NewLocationHandler(c.Capacity, retry),
		Inventory:  handler.NewInventoryHandler(c.Ledger, retry),
	}
}

// Close releases every resource, flushing telemetry last.
func (c *Container) Close(ctx context.Context) error {
	var err error
	if c.kafka != nil {
		err = errors.Join(err, c.kafka.Close())
	}
	if c.Redis != nil {
		err = errors.Join(err, c.Redis.Close())
	}
	if c.DB != nil {
		if sqlDB, dbErr := c.DB.DB(); dbErr == nil {
			err = errors.Join(err, sqlDB.Close())
		}
	}
	_ = c.Logger.Sync()
	if c.otelShutdown != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if otelErr := c.otelShutdown(flushCtx); otelErr != nil {
			err = errors.Join(err, fmt.Errorf("otel shutdown: %w", otelErr))
		}
	}
	return err
}
