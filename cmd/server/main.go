package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aito-ai/voice-agent-backend/internal/api"
	"github.com/aito-ai/voice-agent-backend/internal/auth"
	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/middleware"
	"github.com/aito-ai/voice-agent-backend/internal/relay"
	"github.com/aito-ai/voice-agent-backend/internal/services"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		sugar.Fatalw("postgres: failed to connect", "error", err)
	}
	defer postgres.Close()

	if err := postgres.Ping(ctx); err != nil {
		sugar.Fatalw("postgres: ping failed", "error", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		sugar.Fatalw("postgres: ensure schema failed", "error", err)
	}

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		sugar.Fatalw("mongo: failed to connect", "error", err)
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			sugar.Warnw("mongo: close error", "error", err)
		}
	}()

	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		sugar.Fatalw("mongo: ensure indexes failed", "error", err)
	}

	// Rate limiting is best-effort; a missing Redis only disables it.
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient, err = db.NewRedis(ctx, cfg.Redis)
		if err != nil {
			sugar.Warnw("redis: unavailable, rate limiting disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	adminStore := db.NewAdminStore(postgres)
	userStore := db.NewUserStore(mongoStore)
	sessionStore := db.NewSessionStore(mongoStore)
	feedbackStore := db.NewFeedbackStore(mongoStore)

	authService, err := auth.NewService(cfg.JWTSecret, 24*time.Hour, adminStore, sugar)
	if err != nil {
		sugar.Fatalw("auth: failed to initialise", "error", err)
	}
	if err := authService.EnsureSeedAdmin(ctx, cfg.AdminSeed); err != nil {
		sugar.Fatalw("auth: seed admin failed", "error", err)
	}

	identityService := services.NewIdentityService(userStore, sugar)
	namingEngine := services.NewNameInference()
	sessionService := services.NewSessionService(sessionStore, userStore, identityService, namingEngine, sugar)
	feedbackService := services.NewFeedbackService(feedbackStore, sugar)

	go sessionService.RunSweeper(ctx, cfg.Sessions)

	router := setupRouter(cfg, authService, identityService, sessionService, feedbackService,
		userStore, feedbackStore, sessionStore, redisClient, sugar)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopServices()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(
	cfg *utils.Config,
	authService *auth.Service,
	identityService *services.IdentityService,
	sessionService *services.SessionService,
	feedbackService *services.FeedbackService,
	userStore *db.UserStore,
	feedbackStore *db.FeedbackStore,
	sessionStore *db.SessionStore,
	redisClient *redis.Client,
	sugar *zap.SugaredLogger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsCfg))

	var public []gin.HandlerFunc
	if redisClient != nil {
		public = append(public, middleware.RateLimit(redisClient, cfg.RateLimit, sugar))
	}

	handler := api.NewHandler(identityService, sessionService, feedbackService, authService,
		userStore, feedbackStore, sessionStore, sugar)
	handler.RegisterRoutesWith(router, public)

	voiceRelay := relay.NewRelay(identityService, sessionService, sugar)
	router.GET("/api/voice/stream", voiceRelay.Handle)

	return router
}
