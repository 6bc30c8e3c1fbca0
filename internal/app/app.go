package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pingme/internal/db"
	"pingme/internal/handlers"
	"pingme/internal/models"
	"pingme/internal/presence"
	"pingme/internal/services"
	"pingme/internal/store"
	"pingme/internal/store/memory"
	"pingme/internal/store/postgres"
	"pingme/internal/uploads"
	"pingme/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Run() {
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Stores
	var (
		users    store.Users
		messages store.Messages
	)
	switch backend := utils.GetEnv("STORAGE_BACKEND", "postgres"); backend {
	case "memory":
		users = memory.NewUserStore()
		messages = memory.NewMessageStore()
		log.Println("Using in-memory storage")
	default:
		if err := db.Init(context.Background(), db.ConnString()); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		users = postgres.NewUserStore(db.Pool)
		messages = postgres.NewMessageStore(db.Pool)
	}

	// Uploads
	uploadDir := utils.GetEnv("UPLOAD_DIR", "uploads")
	imageStore, err := uploads.NewDiskStore(uploadDir, utils.GetEnv("BASE_URL", ""))
	if err != nil {
		log.Fatalf("Failed to init upload dir: %v", err)
	}

	// Services
	userService := services.NewUserService(users, imageStore)
	messageService := services.NewMessageService(users, messages, imageStore)

	// Event channel
	registry := presence.NewRegistry()
	hub := handlers.NewHub(registry)

	// Fiber App
	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Static("/uploads", uploadDir)

	api := app.Group("/api")

	// Public auth routes
	auth := api.Group("/auth")

	auth.Post("/signup", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.Username == "" || req.Password == "" {
			return c.Status(400).JSON(fiber.Map{"error": "username and password required"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, store.ErrUserExists) {
				return c.Status(400).JSON(fiber.Map{"error": "username already exists"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(user)
	})

	auth.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	})

	// Token disposal happens client side; the endpoint exists for API
	// compatibility with older clients.
	auth.Post("/logout", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "logged out"})
	})

	auth.Get("/check", handlers.AuthMiddleware, handlers.CheckAuthHandler(userService))
	auth.Put("/update-profile", handlers.AuthMiddleware, handlers.UpdateProfileHandler(userService))

	// Message routes
	msgs := api.Group("/messages")
	msgs.Use(handlers.AuthMiddleware)
	msgs.Get("/users", handlers.GetRosterHandler(messageService, registry))
	msgs.Get("/:id", handlers.GetMessagesHandler(messageService))
	msgs.Post("/send/:id", handlers.SendMessageHandler(messageService))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Event channel route. The socket needs no HTTP credential: a
	// connection binds itself with a setup event or stays Unbound.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(hub))

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

	<-c
	log.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
}
