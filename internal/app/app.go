package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctf_backend/internal/cache"
	"ctf_backend/internal/config"
	"ctf_backend/internal/controller"
	"ctf_backend/internal/repository"
	"ctf_backend/internal/service"
	"ctf_backend/pkg/database"
	"ctf_backend/pkg/logger"
	"ctf_backend/pkg/monitoring"
	"ctf_backend/pkg/security"
	"ctf_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	caches *caches
}

type repositories struct {
	user      *repository.UserRepository
	challenge *repository.ChallengeRepository
	attempt   *repository.AttemptRepository
}

type caches struct {
	challenge *cache.ChallengeCache
	blacklist *cache.BlacklistCache
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	leaderboard *service.LeaderboardService
	submission  *service.SubmissionService
	hint        *service.HintService
	challenge   *service.ChallengeService
	round       *service.RoundService
	user        *service.UserService
	announcer   service.Announcer
	confirms    service.ConfirmStore
}

type controllers struct {
	auth        *controller.AuthController
	challenge   *controller.ChallengeController
	submission  *controller.SubmissionController
	hint        *controller.HintController
	leaderboard *controller.LeaderboardController
	user        *controller.UserController
	round       *controller.RoundController
	health      *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		challenge: repository.NewChallengeRepository(db),
		attempt:   repository.NewAttemptRepository(db),
	}
}

func (a *App) initCaches(repos *repositories) *caches {
	c := &caches{
		challenge: cache.NewChallengeCache(repos.challenge),
		blacklist: cache.NewBlacklistCache(repos.user),
	}
	if err := c.challenge.Refresh(); err != nil {
		logger.Log.Error("initial challenge cache load failed", zap.Error(err))
	}
	if err := c.blacklist.Refresh(); err != nil {
		logger.Log.Error("initial blacklist cache load failed", zap.Error(err))
	}
	return c
}

func (a *App) initServices(repos *repositories, caches *caches, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.confirms = service.NewRedisConfirmStore(rdb)
	s.announcer = service.NewWebhookAnnouncer(&cfg.Announce)

	s.auth = service.NewAuthService(repos.user, &cfg.JWT)
	s.leaderboard = service.NewLeaderboardService(repos.user, repos.attempt, rdb, cfg.Game.PageSize)
	s.submission = service.NewSubmissionService(db, repos.user, repos.challenge, repos.attempt, s.leaderboard, s.announcer, &cfg.Game)
	s.hint = service.NewHintService(db, repos.user, repos.challenge, repos.attempt, s.confirms, s.announcer, &cfg.Game)
	s.challenge = service.NewChallengeService(db, repos.challenge, caches.challenge, s.confirms, s.announcer, &cfg.Game)
	s.round = service.NewRoundService(db, repos.user, repos.challenge, s.leaderboard, caches.challenge, s.confirms, s.announcer, &cfg.Game)
	s.user = service.NewUserService(db, repos.user, repos.attempt, s.leaderboard, caches.challenge, caches.blacklist)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		challenge:   controller.NewChallengeController(s.challenge, s.storage),
		submission:  controller.NewSubmissionController(s.submission),
		hint:        controller.NewHintController(s.hint),
		leaderboard: controller.NewLeaderboardController(s.leaderboard),
		user:        controller.NewUserController(s.user),
		round:       controller.NewRoundController(s.round),
		health:      controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS())
	router.Use(security.Secure())
	router.Use(security.RateLimiter(1000, time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks keeps the in-process mirrors converging with the store
// even when another instance mutates it.
func (a *App) startBackgroundTasks(caches *caches, cfg *config.Config) {
	go func() {
		ticker := time.NewTicker(cfg.Game.CacheRefresh)
		for range ticker.C {
			if err := caches.challenge.Refresh(); err != nil {
				logger.Log.Error("challenge cache refresh failed", zap.Error(err))
			}
			if err := caches.blacklist.Refresh(); err != nil {
				logger.Log.Error("blacklist cache refresh failed", zap.Error(err))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.caches = app.initCaches(repos)
	services, err := app.initServices(repos, app.caches, cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
		log.Fatalf("Failed to initialize services: %v", err)
	}
	controllers := app.initControllers(services, db)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("ctf-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, app.caches, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(app.caches, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
