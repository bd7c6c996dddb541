package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-warehouse-fulfillment/internal/app"
	"go-warehouse-fulfillment/internal/config"
	"go-warehouse-fulfillment/internal/handler"
	"go-warehouse-fulfillment/internal/jobs"
	"go-warehouse-fulfillment/pkg/database"
	"go-warehouse-fulfillment/pkg/jwt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// 2. Setup Logger, Telemetry, Database, Redis, Kafka and Services
	container, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	zlog := container.Logger

	// Auto Migrate (production deployments run `warehousectl migrate` instead)
	if err := database.Migrate(container.DB); err != nil {
		zlog.Fatal("auto migrate failed", zap.Error(err))
	}

	// 3. Setup WebSocket Hub
	go container.Hub.Run()

	// 4. Capacity drift repair
	scheduler, err := jobs.StartScheduler(cfg.CapacityRepairSchedule, jobs.NewCapacityRepair(container.Capacity, zlog), zlog)
	if err != nil {
		zlog.Fatal("cron setup failed", zap.Error(err))
	}

	// 5. Setup Fiber
	fiberApp := fiber.New(fiber.Config{
		AppName: "Warehouse Fulfillment v0.1",
	})

	// Middleware
	fiberApp.Use(logger.New())
	fiberApp.Use(recover.New())
	fiberApp.Use(cors.New())

	// 6. Routes
	handler.Register(fiberApp, container.Handlers(), jwt.NewManager(cfg.JWTSecret, 0))

	// WebSocket Route
	fiberApp.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	fiberApp.Get("/ws", websocket.New(func(c *websocket.Conn) {
		container.Hub.Register <- c
		defer func() { container.Hub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 7. Graceful Shutdown
	go func() {
		if err := fiberApp.Listen(":" + cfg.Port); err != nil {
			zlog.Panic("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	<-scheduler.Stop().Done()
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	container.Hub.Stop()
	if err := container.Close(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("Server exited")
}
