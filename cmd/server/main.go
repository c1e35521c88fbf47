package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canvas-studio/internal/api"
	"canvas-studio/internal/config"
	"canvas-studio/internal/db"
	"canvas-studio/internal/export"
	"canvas-studio/internal/identity"
	"canvas-studio/internal/repository"
	"canvas-studio/internal/services/collaboration"
	"canvas-studio/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

const version = "0.3.0"

/*
LEARNING: GRACEFUL SHUTDOWN PATTERN WITH OBSERVABILITY

This main function demonstrates:
1. Service initialization and dependency injection
2. Choosing a room backend at startup (in-memory or Redis)
3. Distributed tracing with Jaeger
4. Graceful shutdown handling (listening for SIGINT/SIGTERM)
5. Proper resource cleanup order: HTTP first, then rooms, then caches
*/

func main() {
	log.Println("🚀 Starting Canvas Studio server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing
	// Learning: Do this FIRST so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("canvas-studio", version, cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Initialize GORM database
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize repositories
	designRepo := repository.NewDesignRepository(database.DB)
	userRepo := repository.NewUserRepository(database.DB)

	// Identity: user directory with lookup cache, bearer verifier, room tokens
	directory := identity.NewDirectory(userRepo, cfg.UserCacheTTL)
	directory.Start()
	verifier := identity.NewVerifier(cfg.AuthTokenSecret)
	roomTokens := identity.NewRoomTokenIssuer(cfg.RoomTokenSecret, cfg.RoomTokenTTL)

	// Room storage
	// Learning: With Redis every instance sees the same documents and
	// events, so clients of one room may land on different servers
	var (
		store collaboration.RoomStore
		bus   collaboration.RoomBus
	)
	switch cfg.RoomStore {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		defer client.Close()

		redisStore := repository.NewRedisRoomStore(client)
		store, bus = redisStore, redisStore
		log.Printf("✓ Room storage: redis (%s)", cfg.RedisAddr)
	default:
		store = repository.NewMemoryRoomStore()
		log.Println("✓ Room storage: in-memory (single instance)")
	}

	// Initialize WebSocket session manager for real-time collaboration
	sessionManager := collaboration.NewSessionManager(store, bus)
	sessionManager.Start()

	// Initialize WebSocket handler
	wsHandler := collaboration.NewWebSocketHandler(sessionManager, roomTokens, cfg.FrontendURL)

	renderer := export.NewRenderer(cfg.ExportDefaultWidth, cfg.ExportDefaultHeight).
		WithMaxSize(cfg.ExportMaxWidth, cfg.ExportMaxHeight)

	// Initialize handlers with dependency injection
	handler := api.NewHandler(designRepo, directory, verifier, roomTokens, renderer, wsHandler)

	// Setup routes
	router := api.SetupRoutes(handler, cfg.FrontendURL)

	// Configure HTTP server
	addr := cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	// Learning: This allows us to handle shutdown signals concurrently
	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   POST   /api/designs                - Create design")
		log.Printf("   GET    /api/designs/user/:userId   - List a user's designs")
		log.Printf("   GET    /api/designs/:id            - Get design")
		log.Printf("   PUT    /api/designs/:id            - Update design")
		log.Printf("   DELETE /api/designs/:id            - Delete design (?hard=true)")
		log.Printf("   POST   /api/designs/:id/export     - Export PNG")
		log.Printf("   POST   /api/rooms/auth             - Room token")
		log.Printf("   GET    /ws/rooms/:room             - Collaboration room")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	// Learning: This is the graceful shutdown pattern
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	// Shutdown HTTP server with timeout
	// Learning: Give the server 30 seconds to finish existing requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Shutdown WebSocket session manager
	// Learning: This closes all active WebSocket connections gracefully
	sessionManager.Shutdown()

	directory.Shutdown()

	log.Println("✓ Server shutdown complete")
}
