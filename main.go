package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/taptap-tz/taptap-bot/database"
	"github.com/taptap-tz/taptap-bot/internal/config"
	"github.com/taptap-tz/taptap-bot/internal/handlers"
	"github.com/taptap-tz/taptap-bot/internal/jobs"
	"github.com/taptap-tz/taptap-bot/internal/logging"
	"github.com/taptap-tz/taptap-bot/internal/routes"
	"github.com/taptap-tz/taptap-bot/internal/services"
	"github.com/taptap-tz/taptap-bot/internal/storage"
)

const version = "1.0.0"

func main() {
	root := &cobra.Command{
		Use:           "taptap",
		Short:         "TAPTAP WhatsApp ordering bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the WhatsApp webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	})

	var conversationID string
	console := &cobra.Command{
		Use:   "console",
		Short: "Chat with the bot from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.InOrStdin(), cmd.OutOrStdout(), conversationID)
		},
	}
	console.Flags().StringVar(&conversationID, "from", "console", "conversation id to chat as")
	root.AddCommand(console)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

// app is everything a turn needs, shared by the server and the console
type app struct {
	cfg       *config.Config
	store     storage.SessionStore
	storeName string
	ping      func() error
	metrics   *services.Metrics
	flow      *services.OrderingFlow
	closers   []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("⚠️  Close error: %v", err)
		}
	}
}

func bootstrap(logFile bool) (*app, error) {
	config.LoadEnvFiles()
	cfg := config.Load()

	a := &app{cfg: cfg}

	path := ""
	if logFile {
		path = cfg.LogFile
	}
	closer, err := logging.Setup(path)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	a.closers = append(a.closers, closer)

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	a.metrics = services.NewMetrics()
	api := services.NewTaptapAPI(cfg.APIBaseURL, cfg.BotToken, cfg.APITimeout).WithMetrics(a.metrics)
	a.flow = services.NewOrderingFlow(api, a.metrics)

	return a, nil
}

func (a *app) openStore() error {
	switch a.cfg.SessionStore {
	case config.StoreRedis:
		log.Printf("📦 Connecting to Redis at %s...", a.cfg.RedisAddr)
		store := storage.NewRedisStore(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, storage.WithTTL(a.cfg.SessionTTL))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.store, a.storeName = store, "Redis"
		a.ping = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(ctx)
		}
		a.closers = append(a.closers, store)
		log.Println("✅ Using Redis session storage")

	case config.StorePostgres:
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(); err != nil {
			return err
		}
		store := storage.NewDatabaseStore(database.DB)

		log.Println("🔄 Running database migrations...")
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Println("✅ Database migrations completed!")

		a.store, a.storeName = store, "PostgreSQL Database"
		a.ping = database.Ping

	case config.StoreMemory:
		log.Println("⚠️  Using in-memory storage (sessions are lost on restart)")
		a.store, a.storeName = storage.NewMemoryStore(), "In-Memory"

	default:
		return fmt.Errorf("unknown SESSION_STORE %q", a.cfg.SessionStore)
	}
	return nil
}

func runServer() error {
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	var sender services.Sender
	if cfg.TwilioConfigured() {
		twilioService, err := services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
		if err != nil {
			return fmt.Errorf("failed to initialize Twilio service: %w", err)
		}
		sender = twilioService
		log.Println("✅ Twilio service initialized")
	} else {
		log.Println("⚠️  Twilio credentials not found - replies are printed to stdout")
		sender = services.NewConsoleSender(os.Stdout)
	}

	conversations := services.NewConversationManager(a.store, a.flow, sender, a.metrics)

	// Redis expires sessions itself; the other stores are swept
	if pruner, ok := a.store.(jobs.Pruner); ok && cfg.SessionTTL > 0 {
		sweeper := jobs.NewSessionSweeper(pruner, cfg.SessionTTL, 0)
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Create fiber app
	server := fiber.New(fiber.Config{
		AppName: "TAPTAP Bot v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(server, cfg,
		handlers.NewWhatsAppHandler(conversations),
		handlers.NewHealthHandler(version, a.storeName, conversations, a.ping),
		a.metrics,
	)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("🛑 Gracefully shutting down...")
		_ = server.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 TAPTAP Bot starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", a.storeName)
	log.Printf("🌍 Environment: %s", cfg.Environment)
	log.Printf("📱 WhatsApp: %s", whatsAppStatus(cfg))
	log.Printf("🍽️  Backend: %s", cfg.APIBaseURL)
	log.Println("========================================")

	return server.Listen(":" + cfg.Port)
}

func whatsAppStatus(cfg *config.Config) string {
	if !cfg.TwilioConfigured() {
		return "Not configured"
	}
	return "Configured"
}
