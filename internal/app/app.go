package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-backend/internal/auction"
	"auction-backend/internal/broadcast"
	"auction-backend/internal/db"
	"auction-backend/internal/handlers"
	"auction-backend/internal/models"
	"auction-backend/internal/registry"
	"auction-backend/internal/relay"
	"auction-backend/internal/services"
	"auction-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	resolveSweepInterval   = time.Minute
	retentionSweepInterval = time.Hour
)

func Run() {
	// Load Env
	if err := utils.LoadEnv(); err != nil {
		log.Warn(".env file not found")
	}

	// Init DB
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "auctiondb") + "?sslmode=disable"
	}

	if err := db.InitDB(connString); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseDB()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Services
	userService := services.NewUserService()
	chatService := services.NewChatService()
	messageService := services.NewMessageService()
	auctionService := services.NewAuctionService()

	// Realtime core
	broadcaster := broadcast.New()
	if addr := utils.GetEnv("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: utils.GetEnv("REDIS_PASSWORD", ""),
		})
		broadcaster.AttachRedis(ctx, rdb)
		log.WithField("addr", addr).Info("redis mirror attached")
	}

	roomRegistry := registry.New(broadcaster)
	messageRelay := relay.New(chatService, messageService, userService, broadcaster)
	engine := auction.NewEngine(auctionService, broadcaster, userService)

	rt := &handlers.Realtime{
		Registry:    roomRegistry,
		Broadcaster: broadcaster,
		Relay:       messageRelay,
	}

	// Background sweeps
	go resolveSweep(ctx, engine)
	go retentionSweep(ctx, chatService)

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "Invalid request"})
		}
		if req.Name == "" || req.Password == "" {
			return c.Status(400).JSON(fiber.Map{"message": "name and password are required"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrUserExists) {
				return c.Status(400).JSON(fiber.Map{"message": "username already exists"})
			}
			utils.LogError(err, "Register")
			return c.Status(500).JSON(fiber.Map{"message": "Error creating user"})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"message": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"message": err.Error()})
		}
		return c.JSON(res)
	})

	// Room history doubles as the polling fallback, so it stays public like
	// the rooms themselves.
	app.Get("/chat/room/:roomId", handlers.RoomHistoryHandler(chatService))

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware)

	// Auctions
	protected.Post("/auctions", handlers.CreateAuctionHandler(auctionService))
	protected.Get("/auctions", handlers.ListAuctionsHandler(auctionService))
	protected.Get("/auctions/mine", handlers.MyAuctionsHandler(auctionService))
	protected.Get("/auctions/:id", handlers.GetAuctionHandler(engine))
	protected.Post("/auctions/:id/bid", handlers.PlaceBidHandler(engine))

	// Direct messages
	protected.Post("/messages", handlers.CreateMessageHandler(messageRelay))
	protected.Get("/messages", handlers.GetMessagesHandler(messageService))
	protected.Get("/messages/conversations", handlers.ConversationsHandler(messageService))
	protected.Get("/messages/my-conversations", handlers.MyConversationsHandler(messageService))
	protected.Get("/messages/unread-count", handlers.UnreadCountHandler(messageService))
	protected.Patch("/messages/:id/read", handlers.MarkReadHandler(messageRelay))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. WSUpgradeMiddleware checks if it's a WS
	// request, AuthMiddleware checks the token.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(rt))

	// Start Server
	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Info("Gracefully shutting down...")
	cancel()
	_ = app.Shutdown()
	log.Info("Server shutdown complete")
}

// resolveSweep periodically resolves ended auctions so winners are assigned
// even when nobody requests the auction after its end time.
func resolveSweep(ctx context.Context, engine *auction.Engine) {
	ticker := time.NewTicker(resolveSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.ResolveDue(ctx)
		}
	}
}

// retentionSweep purges room messages past the retention window.
func retentionSweep(ctx context.Context, chatService *services.ChatService) {
	retention := time.Duration(utils.GetEnvInt("CHAT_RETENTION_DAYS", 30)) * 24 * time.Hour
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := chatService.DeleteOldMessages(ctx, retention)
			if err != nil {
				utils.LogError(err, "chat retention sweep")
				continue
			}
			if n > 0 {
				log.WithField("deleted", n).Info("chat retention sweep")
			}
		}
	}
}
