package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	closeTimeout          = 10 * time.Second
)

// Database holds the catalog's connections. Postgres is required. The
// favorites graph and both Redis tiers are optional; a nil client switches
// off the features it backs (see Features).
type Database struct {
	PG    *pgxpool.Pool
	Neo4j neo4j.DriverWithContext
	Redis *RedisClients

	logger  *logrus.Logger
	closers []namedCloser
}

// RedisClients splits Redis by workload. Hot backs sessions and rate limits,
// warm backs the recommendation cache and import batch tracking.
type RedisClients struct {
	Hot  *redis.Client
	Warm *redis.Client
}

type namedCloser struct {
	name  string
	close func(context.Context) error
}

// Features lists which optional catalog features the open connections allow.
type Features struct {
	FavoriteGraph       bool
	Sessions            bool
	RateLimiting        bool
	RecommendationCache bool
	ImportTracking      bool
}

func (f Features) Map() map[string]interface{} {
	return map[string]interface{}{
		"favorite_graph":       f.FavoriteGraph,
		"sessions":             f.Sessions,
		"rate_limiting":        f.RateLimiting,
		"recommendation_cache": f.RecommendationCache,
		"import_tracking":      f.ImportTracking,
	}
}

func (db *Database) Features() Features {
	var hot, warm bool
	if db.Redis != nil {
		hot, warm = db.Redis.Hot != nil, db.Redis.Warm != nil
	}
	return Features{
		FavoriteGraph:       db.Neo4j != nil,
		Sessions:            hot,
		RateLimiting:        hot,
		RecommendationCache: warm,
		ImportTracking:      warm,
	}
}

// New opens every configured store and, when database.auto_migrate is set,
// brings the catalog schema up to date. On failure the connections opened so
// far are closed again.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Database, error) {
	db := &Database{Redis: &RedisClients{}, logger: logger}

	if err := db.open(ctx, cfg); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to release connections after startup error")
		}
		return nil, err
	}

	logger.WithFields(logrus.Fields(db.Features().Map())).Info("Catalog storage ready")
	return db, nil
}

func (db *Database) open(ctx context.Context, cfg *config.Config) error {
	pool, err := connectPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	db.PG = pool
	db.track("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	if cfg.Neo4j.Enabled {
		driver, err := connectNeo4j(ctx, cfg.Neo4j)
		if err != nil {
			return fmt.Errorf("failed to initialize Neo4j: %w", err)
		}
		db.Neo4j = driver
		db.track("neo4j", driver.Close)
	} else {
		db.logger.Info("Favorites graph disabled")
	}

	tiers := []struct {
		name   string
		cfg    config.RedisInstanceConfig
		client **redis.Client
	}{
		{"redis_hot", cfg.Redis.Hot, &db.Redis.Hot},
		{"redis_warm", cfg.Redis.Warm, &db.Redis.Warm},
	}
	for _, tier := range tiers {
		if tier.cfg.URL == "" {
			db.logger.WithField("store", tier.name).Info("Redis tier not configured")
			continue
		}
		client, err := connectRedis(ctx, tier.cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize %s: %w", tier.name, err)
		}
		*tier.client = client
		db.track(tier.name, func(context.Context) error { return client.Close() })
	}

	if cfg.Database.AutoMigrate {
		applied, err := Migrate(ctx, db.PG)
		if err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		db.logger.WithField("applied", applied).Info("Database schema up to date")
	}

	return nil
}

func (db *Database) track(name string, close func(context.Context) error) {
	db.closers = append(db.closers, namedCloser{name: name, close: close})
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxIdleTime
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	poolConfig.ConnConfig.ConnectTimeout = timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return pool, nil
}

func connectNeo4j(ctx context.Context, cfg config.Neo4jConfig) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URL,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = 10
			c.ConnectionAcquisitionTimeout = 30 * time.Second
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(verifyCtx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	return driver, nil
}

func connectRedis(ctx context.Context, cfg config.RedisInstanceConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.URL, err)
	}

	return client, nil
}

// Close releases connections in the reverse order they were opened.
func (db *Database) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	for i := len(db.closers) - 1; i >= 0; i-- {
		c := db.closers[i]
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
			continue
		}
		db.logger.WithField("store", c.name).Debug("Connection closed")
	}
	db.closers = nil

	return errors.Join(errs...)
}
