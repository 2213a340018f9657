package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/config"
	"github.com/dealersight/credential-server-go/internal/database"
	"github.com/dealersight/credential-server-go/internal/handler"
	"github.com/dealersight/credential-server-go/internal/jobs"
	"github.com/dealersight/credential-server-go/internal/middleware"
	"github.com/dealersight/credential-server-go/internal/redis"
	"github.com/dealersight/credential-server-go/internal/repository"
	"github.com/dealersight/credential-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	connRepo := repository.NewConnectionRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	dealershipRepo := repository.NewDealershipRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)

	stateCodec, err := service.NewStateCodec(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize state codec")
	}
	accessChecker := service.NewAccessChecker(dealershipRepo)
	resolver := service.NewDealershipResolver(userRepo, dealershipRepo, accessChecker)
	auditor := service.NewIntegrityAuditor(db, connRepo, userRepo, accessChecker)
	connectService := service.NewConnectService(cfg, stateCodec, resolver, accessChecker, userRepo, connRepo)

	sessionMw := middleware.NewSessionMiddleware(sessionRepo, userRepo, cfg.SessionSecret)
	rateLimitMw := middleware.NewOAuthInitRateLimitMiddleware(redisClient.Client)
	adminAuthMw := middleware.NewAdminAuthMiddleware(cfg.AdminPasswordHash)
	securityHeadersMw := middleware.NewSecurityHeadersMiddleware(isProduction)

	connectHandler := handler.NewConnectHandler(
		connectService, sessionMw.Handler, rateLimitMw.Handler, cfg.OAuthRedirectBase+"/settings/connections",
	)
	adminHandler := handler.NewAdminHandler(auditor, adminAuthMw.Handler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(securityHeadersMw.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/connect", func(r chi.Router) {
		r.Mount("/", connectHandler.Routes())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Mount("/", adminHandler.Routes())
	})

	integrityJob := jobs.NewIntegrityJob(auditor, cfg.IntegrityScanInterval(), cfg.IntegrityAutoFix)
	integrityJob.Start()
	defer integrityJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
