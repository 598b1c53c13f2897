package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mocktest_backend/internal/config"
	"mocktest_backend/internal/controller"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/service"
	"mocktest_backend/internal/session"
	"mocktest_backend/internal/util"
	"mocktest_backend/pkg/configwatcher"
	"mocktest_backend/pkg/database"
	"mocktest_backend/pkg/logger"
	"mocktest_backend/pkg/monitoring"
	"mocktest_backend/pkg/security"
	"mocktest_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigDir holds config.yaml.
const ConfigDir = "configs"

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Mongo  *mongo.Client
	Redis  *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type stores struct {
	tests    repository.TestStore
	attempts repository.AttemptStore
	users    repository.UserStore
	pinger   repository.Pinger
}

type services struct {
	storage   *service.StorageService
	tests     *service.TestService
	ingestion *service.IngestionService
	sessions  *service.SessionManager
	results   *service.ResultService
	auth      *service.AuthService
}

type controllers struct {
	auth     *controller.AuthController
	test     *controller.TestController
	question *controller.QuestionController
	session  *controller.SessionController
	result   *controller.ResultController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// needsRedis reports whether any configured component keeps data in redis.
func needsRedis(cfg *config.Config) bool {
	return cfg.Session.SnapshotDriver == "redis" || cfg.Events.Driver == "redis"
}

func (a *App) initStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "mongo" {
		client, err := database.InitMongo(&cfg.Mongo)
		if err != nil {
			return nil, err
		}
		a.Mongo = client
		ms := repository.NewMongoStore(client, cfg.Mongo.Database)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return &stores{tests: ms, attempts: ms, users: ms, pinger: ms}, nil
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		return nil, err
	}
	a.DB = db
	tests := repository.NewMockTestRepository(db)
	return &stores{
		tests:    tests,
		attempts: repository.NewAttemptRepository(db),
		users:    repository.NewUserRepository(db),
		pinger:   tests,
	}, nil
}

func (a *App) snapshotStore(cfg *config.Config) session.SnapshotStore {
	if cfg.Session.SnapshotDriver == "redis" && a.Redis != nil {
		return repository.NewRedisSnapshotStore(a.Redis, cfg.Session.SnapshotTTL())
	}
	return repository.NewMemorySnapshotStore()
}

func (a *App) initServices(st *stores, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.tests = service.NewTestService(st.tests)
	s.ingestion = service.NewIngestionService(st.tests, s.storage)
	s.auth = service.NewAuthService(st.users, cfg.JWT.Secret, cfg.JWT.ExpireTime)

	events := service.NewEventPublisher(context.Background(), &cfg.Events, a.Redis)
	s.sessions = service.NewSessionManager(cfg.Session, s.tests, st.attempts, a.snapshotStore(cfg), events)
	s.results = service.NewResultService(s.tests, st.attempts, s.sessions.Settings)

	return s
}

func (a *App) initControllers(s *services, st *stores) *controllers {
	var redisPinger repository.Pinger
	if a.Redis != nil {
		redisPinger = repository.RedisPinger{Client: a.Redis}
	}
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		test:     controller.NewTestController(s.tests),
		question: controller.NewQuestionController(s.ingestion, s.tests),
		session:  controller.NewSessionController(s.sessions),
		result:   controller.NewResultController(s.results),
		health:   controller.NewHealthController(st.pinger, redisPinger),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	app := &App{Config: cfg}

	st, err := app.initStores(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	if needsRedis(cfg) {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	if cfg.MigrateOnly {
		return app
	}

	services := app.initServices(st, cfg)
	app.services = services
	controllers := app.initControllers(services, st)

	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.sessions.UpdateDefaults(newCfg.Session)
	})

	return app
}

// SeedAdmin creates the configured admin account. An existing account is
// left untouched.
func (a *App) SeedAdmin(ctx context.Context) error {
	if a.services == nil {
		return errors.New("services not initialized")
	}
	err := a.services.auth.SeedAdmin(ctx, a.Config.Admin.Username, a.Config.Admin.Password)
	if errors.Is(err, util.ErrUserExists) {
		logger.Log.Info("admin user already exists", zap.String("username", a.Config.Admin.Username))
		return nil
	}
	return err
}

func (a *App) watchConfig(ctx context.Context) {
	go func() {
		file := filepath.Join(ConfigDir, "config.yaml")
		err := configwatcher.Watch(ctx, file, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("config watcher not running", zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	a.watchConfig(watchCtx)

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
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Clocks stop after the listener so no request races a closed session.
	a.services.sessions.Shutdown()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	a.Close(ctx)
	log.Println("Server exiting")
}

// Close releases store connections.
func (a *App) Close(ctx context.Context) {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Mongo != nil {
		_ = a.Mongo.Disconnect(ctx)
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
