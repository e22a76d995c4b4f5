package database

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvtantrum/tantrum/internal/config"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDatabase_Features(t *testing.T) {
	t.Run("nothing optional connected", func(t *testing.T) {
		features := (&Database{}).Features()

		assert.Equal(t, Features{}, features)
		assert.Equal(t, false, features.Map()["recommendation_cache"])
	})

	t.Run("warm tier only", func(t *testing.T) {
		warm := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
		defer warm.Close()

		features := (&Database{Redis: &RedisClients{Warm: warm}}).Features()

		assert.True(t, features.RecommendationCache)
		assert.True(t, features.ImportTracking)
		assert.False(t, features.Sessions)
		assert.False(t, features.RateLimiting)
		assert.False(t, features.FavoriteGraph)
	})
}

func TestDatabase_CloseReleasesInReverseOrder(t *testing.T) {
	db := &Database{logger: quietLogger()}
	var order []string
	neo4jErr := errors.New("neo4j close timeout")

	db.track("postgres", func(context.Context) error {
		order = append(order, "postgres")
		return nil
	})
	db.track("neo4j", func(context.Context) error {
		order = append(order, "neo4j")
		return neo4jErr
	})
	db.track("redis_hot", func(context.Context) error {
		order = append(order, "redis_hot")
		return nil
	})

	err := db.Close()

	assert.Equal(t, []string{"redis_hot", "neo4j", "postgres"}, order)
	assert.ErrorIs(t, err, neo4jErr)
	assert.Contains(t, err.Error(), "failed to close neo4j")

	order = nil
	assert.NoError(t, db.Close())
	assert.Empty(t, order)
}

func TestNew_InvalidPostgresURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.URL = "postgres://tantrum@localhost:notaport/tvtantrum"

	db, err := New(context.Background(), cfg, quietLogger())

	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "PostgreSQL")
}
