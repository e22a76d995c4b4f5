package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/database"
	"github.com/tvtantrum/tantrum/internal/messaging"
	"github.com/tvtantrum/tantrum/internal/sensory"
	"github.com/tvtantrum/tantrum/internal/store"
	"github.com/tvtantrum/tantrum/internal/validation"
)

type Services struct {
	Auth        *AuthService
	Health      *HealthService
	RateLimit   *RateLimitService
	Metrics     *Metrics
	Normalizer  *sensory.Normalizer
	Schemas     *validation.SchemaValidator
	Shows       *ShowService
	Recommender *RecommenderService
	Ingestion   *IngestionService
	Batches     *ImportBatchTracker
	MessageBus  *messaging.MessageBus // nil when ingestion is disabled
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	metrics := NewMetrics(reg, logger)
	normalizer := sensory.NewNormalizer(sensory.MultiSink{
		sensory.LogSink{Logger: logger},
		metrics,
	})

	schemas, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load JSON schemas: %w", err)
	}

	showStore := store.NewShowStore(db.PG, logger)
	graph := store.NewFavoriteGraph(db.Neo4j, logger)

	recommender := NewRecommenderService(showStore, normalizer, db.Redis.Warm, metrics, cfg.Recommendation, logger)
	shows := NewShowService(showStore, graph, recommender, normalizer, cfg.Recommendation, logger)
	batches := NewImportBatchTracker(db.Redis.Warm, defaultBatchTTL, logger)
	ingestion := NewIngestionService(showStore, schemas, normalizer, batches, metrics, logger)

	health := NewHealthService(DatabaseChecks(db), metrics, logger)
	health.AddDetail("features", db.Features().Map)

	var messageBus *messaging.MessageBus
	if cfg.Ingestion.Enabled {
		messageBus, err = messaging.NewMessageBus(cfg, logger)
		if err != nil {
			return nil, err
		}
		messageBus.OnDeadLetter(ingestion.RecordDeadLetter)
		health.AddDetail("ingestion", messageBus.GetMetrics)
	}

	return &Services{
		Auth:        NewAuthService(cfg, logger, db.Redis.Hot),
		Health:      health,
		RateLimit:   NewRateLimitService(cfg, logger, db.Redis.Hot),
		Metrics:     metrics,
		Normalizer:  normalizer,
		Schemas:     schemas,
		Shows:       shows,
		Recommender: recommender,
		Ingestion:   ingestion,
		Batches:     batches,
		MessageBus:  messageBus,
	}, nil
}
