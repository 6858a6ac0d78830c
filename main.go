package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-busticketing/internal/auth"
	"ms-busticketing/internal/config"
	"ms-busticketing/internal/database"
	"ms-busticketing/internal/database/migrations"
	"ms-busticketing/internal/kafka"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/passengers"
	"ms-busticketing/internal/sse"
	ticket_db "ms-busticketing/internal/tickets/db"
	"ms-busticketing/internal/tickets/qr"
	tickets "ms-busticketing/internal/tickets/service"
	"ms-busticketing/internal/tickets/ticket_api"
	"ms-busticketing/internal/utils"
)

// requestLogger writes one access log line per request through the service logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func healthHandler(bunDB *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := bunDB.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unreachable", "internal error", models.CodeStorage))
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "ok", map[string]string{"database": bunDB.Dialect().Name().String()})
	}
}

func setupEvents(cfg config.KafkaConfig, log *logger.Logger) (tickets.EventPublisher, func()) {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, ticket events will not be published")
		return kafka.NopPublisher{}, func() {}
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Brokers))
	requiredTopics := []string{cfg.Topics.TicketSold, cfg.Topics.TicketCancelled, cfg.Topics.SeatStatus}
	if err := kafka.EnsureTopicsExist(cfg.Brokers, requiredTopics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Brokers)
	log.Info("KAFKA", "Kafka producer initialized successfully")
	publisher := kafka.NewTicketPublisher(producer, cfg.Topics, log)
	return publisher, func() {
		publisher.Close()
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Bus Ticketing Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, bunDB, log); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to apply schema: %v", err))
		}
	}

	redisClient, err := auth.InitializeRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	defer redisClient.Close()

	broker, closeBroker := setupEvents(cfg.Kafka, log)
	defer closeBroker()
	seatEmitter := sse.NewSeatEventEmitter()
	events := tickets.EventPublishers{broker, seatEmitter}

	qrGen, err := qr.NewQRGenerator(cfg.Tickets.BoardingPassSecret)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Boarding pass secret: %v", err))
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("JWT secret: %v", err))
	}

	passengerService := passengers.NewService(&passengers.DB{Bun: bunDB}, log)
	ticketService := tickets.NewTicketService(
		&ticket_db.DB{Bun: bunDB},
		passengerService,
		events,
		qrGen,
		tickets.RefundPolicyFromConfig(cfg.Tickets),
		log,
	)
	if loc, err := time.LoadLocation(cfg.Tickets.TimeZone); err != nil {
		log.Warn("CONFIG", fmt.Sprintf("Unknown time zone %q, trip search uses UTC: %v", cfg.Tickets.TimeZone, err))
	} else {
		ticketService.Location = loc
	}
	authService := auth.NewService(
		&auth.UserDB{Bun: bunDB},
		auth.NewRedisSessionStore(redisClient),
		tokens,
		cfg.Auth.SessionTTL,
		log,
	)

	authHandler := auth.NewHandler(authService, log)
	ticketHandler := ticket_api.NewHandler(ticketService, passengerService, log)
	sseHandler := sse.NewHandler(seatEmitter, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(bunDB))
	r.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Auth routes registered under /api/auth")

		ticketHandler.RegisterRoutes(r, auth.Middleware(authService))
		log.Info("ROUTER", "Ticket routes registered under /api/tickets, /api/trips and /api/routes")

		r.Get("/trips/{tripId}/seats/stream", sseHandler.StreamTripSeats)
		log.Info("ROUTER", "Seat stream registered at /api/trips/{tripId}/seats/stream")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Bus Ticketing Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Bus Ticketing Service shutdown complete")
	}
}
