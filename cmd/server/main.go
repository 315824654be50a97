package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiztutor-backend/internal/config"
	"quiztutor-backend/internal/database"
	"quiztutor-backend/internal/handlers"
	"quiztutor-backend/internal/middleware"
	"quiztutor-backend/internal/realtime"
	"quiztutor-backend/internal/repository"
	"quiztutor-backend/internal/router"
	"quiztutor-backend/internal/services"
	"quiztutor-backend/internal/tutor"
	"quiztutor-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Quiz Tutor Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Load Question Deck ────
	deck := repository.ScienceDeck()
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool, "migrations"); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		deck, err = repository.NewQuestionRepo(pool).LoadDeck(ctx)
		cancel()
		if err != nil {
			log.Fatalf("✗ Question deck failed to load: %v", err)
		}
		log.Printf("✓ Question deck loaded from database (%d questions)", deck.Len())
	} else {
		log.Printf("✓ Using built-in question deck (%d questions)", deck.Len())
	}

	// ──── Step 3: Initialize Session Tickets and WebSocket Hub ────
	tickets := middleware.NewSessionTickets(cfg.TicketSecret, cfg.TicketTTL)

	var (
		redisClients *database.RedisClients
		publisher    tutor.Publisher
		wsHub        *websocket.Hub
	)
	if cfg.RedisURL != "" {
		var err error
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		log.Println("✓ Redis connected")

		wsHub = websocket.NewHub(redisClients.PubSub, tickets)
		publisher = services.NewUpdatePublisher(redisClients.Publisher)
	} else {
		wsHub = websocket.NewHub(nil, tickets)
		publisher = wsHub
		log.Println("✓ Redis not configured, delivering updates in-process")
	}

	// ──── Step 4: Initialize Realtime Services ────
	tokenService := services.NewTokenService(cfg.OpenAIAPIBase, cfg.RealtimeModel)
	realtimeClient := realtime.NewClient(cfg.RealtimeURL, cfg.RealtimeModel, cfg.TranscribeModel)
	log.Printf("✓ Realtime client initialized (model %s)", cfg.RealtimeModel)

	// ──── Step 5: Initialize Tutor Sessions ────
	manager := tutor.NewManager(tutor.ManagerConfig{
		Deck:        deck,
		Tokens:      tokenService,
		Dialer:      tutor.RealtimeDialer{Client: realtimeClient},
		Publisher:   publisher,
		StudentName: cfg.StudentName,
		Timing:      tutor.DefaultTiming(),
		IdleTimeout: cfg.SessionIdleTimeout,
		Debug:       cfg.Env == "development",
	})
	wsHub.Attach(manager)
	log.Println("✓ WebSocket hub started")

	sweeper := services.NewIdleSweeper(manager.SweepIdle, services.SweepInterval(cfg.SessionIdleTimeout))
	sweeper.Start()
	log.Printf("✓ Idle session sweeper started (timeout %s)", cfg.SessionIdleTimeout)

	// ──── Step 6: Initialize Handlers ────
	tokenLimiter := middleware.NewRateLimiter(cfg.TokenExchangeLimit, time.Minute)
	tokenHandler := handlers.NewTokenHandler(tokenService)
	questionHandler := handlers.NewQuestionHandler(deck)
	sessionHandler := handlers.NewSessionHandler(manager, tickets, cfg.TicketTTL)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		tickets,
		tokenLimiter,
		tokenHandler,
		questionHandler,
		sessionHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sweeper.Stop()
		tokenLimiter.Stop()
		manager.CloseAll()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Quiz Tutor Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
