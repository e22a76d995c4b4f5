package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/database"
	"github.com/tvtantrum/tantrum/internal/handlers"
	"github.com/tvtantrum/tantrum/internal/middleware"
	"github.com/tvtantrum/tantrum/internal/services"
)

// startupTimeout bounds connecting to every store and migrating the schema.
const startupTimeout = time.Minute

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	stopConsumer context.CancelFunc
	consumerWG   sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := database.New(ctx, cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	svcs, err := services.New(cfg, app.logger, db, prometheus.DefaultRegisterer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svcs

	app.handlers = handlers.New(app.logger, cfg, svcs)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

// StartIngestion runs the show ingestion consumer in the background until
// Shutdown. It is a no-op when ingestion is disabled.
func (a *App) StartIngestion() {
	if a.services.MessageBus == nil {
		a.logger.Info("Show ingestion disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopConsumer = cancel

	a.consumerWG.Add(1)
	go func() {
		defer a.consumerWG.Done()

		a.logger.Info("Show ingestion consumer started")
		err := a.services.MessageBus.ConsumeMessages(ctx, a.services.Ingestion.HandleMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Show ingestion consumer stopped")
			return
		}
		a.logger.Info("Show ingestion consumer stopped")
	}()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.stopConsumer != nil {
		a.stopConsumer()

		done := make(chan struct{})
		go func() {
			a.consumerWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn("Timed out waiting for ingestion consumer")
		}
	}

	var errs []error
	if a.services.MessageBus != nil {
		if err := a.services.MessageBus.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing message bus")
			errs = append(errs, err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a.router = newRouter(a.config, a.logger, a.services, a.handlers)
}

func newRouter(cfg *config.Config, logger *logrus.Logger, svcs *services.Services, h *handlers.Handlers) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg))

	// Unauthenticated
	router.GET("/health", h.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/v1/auth/token", h.Auth.Token)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(svcs.Auth, logger))
	api.Use(middleware.RateLimit(svcs.RateLimit, logger))
	{
		shows := api.Group("/shows")
		{
			shows.GET("", h.Shows.List)
			shows.GET("/popular", h.Shows.Popular)
			shows.GET("/:showId", h.Shows.Get)
			shows.GET("/:showId/similar", h.Shows.Similar)
			shows.GET("/:showId/also-favorited", h.Shows.AlsoFavorited)
		}

		users := api.Group("/users")
		{
			users.GET("/:userId/favorites", h.Favorites.List)
			users.POST("/:userId/favorites", h.Favorites.Add)
			users.DELETE("/:userId/favorites/:showId", h.Favorites.Remove)
		}

		api.GET("/recommendations/:userId", h.Recommendation.Get)

		sensory := api.Group("/sensory")
		{
			sensory.POST("/normalize", h.Sensory.Normalize)
			sensory.GET("/levels", h.Sensory.Levels)
		}

		admin := api.Group("/admin", middleware.RequireTier(services.TierAdmin))
		{
			admin.POST("/shows/import", h.Admin.ImportShows)
			admin.GET("/shows/import/:batchId", h.Admin.ImportStatus)
		}
	}

	return router
}
