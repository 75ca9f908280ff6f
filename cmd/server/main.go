package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SageGlitchy/CMart/internal/config"
	"github.com/SageGlitchy/CMart/internal/database"
	"github.com/SageGlitchy/CMart/internal/handler"
	"github.com/SageGlitchy/CMart/internal/middleware"
	"github.com/SageGlitchy/CMart/internal/repository"
	"github.com/SageGlitchy/CMart/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()

	// Database
	db, err := database.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied successfully")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	listingRepo := repository.NewListingRepository(db)
	bidRepo := repository.NewBidRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// Services
	wsHub := service.NewWSHub()
	authSvc := service.NewAuthService(userRepo, sessionRepo, cfg.JWTSecret)
	listingSvc := service.NewListingService(listingRepo, bidRepo, cfg.Market, wsHub).WithBroadcaster(wsHub)
	chatSvc := service.NewChatService(chatRepo, wsHub).WithPresence(wsHub)

	if cfg.CommunityWebhookURL != "" {
		listingSvc.WithAnnouncer(service.NewCommunityWebhookService(cfg.CommunityWebhookURL))
	}

	// Trending cache is optional; the market works without Redis.
	if rdb, err := database.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Printf("Redis unavailable, trending disabled: %v", err)
	} else {
		defer rdb.Close()
		listingSvc.WithTrending(service.NewTrendingCache(rdb))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health
	healthH := handler.NewHealthHandler(db, wsHub)
	app.Get("/health", healthH.Health)
	app.Get("/ready", healthH.Ready)

	// API v1
	v1 := app.Group("/api/v1")

	// Auth (public)
	authH := handler.NewAuthHandler(authSvc)
	auth := v1.Group("/auth")
	auth.Post("/register", middleware.RateLimit(5, time.Minute), authH.Register)
	auth.Post("/login", middleware.RateLimit(10, time.Minute), authH.Login)
	auth.Post("/refresh", middleware.RateLimit(20, time.Minute), authH.Refresh)
	auth.Post("/logout", authH.Logout)

	// Public market reads
	listingH := handler.NewListingHandler(listingSvc)
	v1.Get("/market/listings", listingH.Search)
	v1.Get("/market/trending", listingH.Trending)
	v1.Get("/market/listings/:id", listingH.GetByID)
	v1.Get("/market/listings/:id/bids", listingH.ListBids)

	// Literal /users/me must be registered before /users/:id or the param
	// route swallows it with id="me".
	userH := handler.NewUserHandler(userRepo)
	v1.Get("/users/me", middleware.Auth(cfg.JWTSecret), userH.Me)
	v1.Get("/users/:id", userH.GetProfile)

	// JWT-protected routes (catch-all, must be registered last)
	protected := v1.Group("", middleware.Auth(cfg.JWTSecret))

	protected.Post("/auth/logout-all", authH.LogoutAll)

	market := protected.Group("/market")
	market.Post("/listings", listingH.Create)
	market.Put("/listings/:id", listingH.Update)
	market.Post("/listings/:id/publish", listingH.Publish)
	market.Post("/listings/:id/bids", middleware.RateLimit(30, time.Minute), listingH.PlaceBid)
	market.Post("/listings/:id/accept", listingH.Accept)
	market.Delete("/listings/:id", listingH.Cancel)
	market.Post("/listings/:id/like", listingH.ToggleLike)
	market.Post("/listings/:id/view", listingH.RecordView)
	market.Get("/my-listings", listingH.MyListings)

	chatH := handler.NewChatHandler(chatSvc)
	chat := protected.Group("/chat")
	chat.Get("/conversations", chatH.ListConversations)
	chat.Post("/messages", chatH.SendMessage)
	chat.Get("/conversations/:id/messages", chatH.ListMessages)
	chat.Post("/conversations/:id/read", chatH.MarkRead)

	// WebSocket
	wsH := handler.NewWSHandler(wsHub, authSvc, chatSvc)
	app.Get("/ws", wsH.Upgrade)

	// Background workers
	go wsHub.Run()
	sweeper := service.NewSweeper(listingSvc, sessionRepo, cfg.Market.SweepInterval)
	go sweeper.Run()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("CMart backend running on :%s (%s)", cfg.Port, cfg.Env)

	<-quit
	log.Println("Shutting down...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
	sweeper.Shutdown()
	wsHub.Shutdown()
	log.Println("Server stopped")
}
