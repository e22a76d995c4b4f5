package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// FavoriteGraph mirrors favorites into Neo4j as
// (:User)-[:FAVORITED]->(:Show) edges. A nil driver turns every call into a
// no-op so the service runs without a graph database.
type FavoriteGraph struct {
	driver neo4j.DriverWithContext
	logger *logrus.Logger
}

func NewFavoriteGraph(driver neo4j.DriverWithContext, logger *logrus.Logger) *FavoriteGraph {
	return &FavoriteGraph{
		driver: driver,
		logger: logger,
	}
}

func (g *FavoriteGraph) Enabled() bool {
	return g != nil && g.driver != nil
}

func (g *FavoriteGraph) AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) error {
	if !g.Enabled() {
		return nil
	}

	cypher := `
		MERGE (u:User {id: $userId})
		MERGE (s:Show {id: $showId})
		MERGE (u)-[r:FAVORITED]->(s)
		ON CREATE SET r.created_at = datetime()`

	return g.write(ctx, cypher, map[string]interface{}{
		"userId": userID.String(),
		"showId": showID,
	})
}

func (g *FavoriteGraph) RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) error {
	if !g.Enabled() {
		return nil
	}

	cypher := `
		MATCH (:User {id: $userId})-[r:FAVORITED]->(:Show {id: $showId})
		DELETE r`

	return g.write(ctx, cypher, map[string]interface{}{
		"userId": userID.String(),
		"showId": showID,
	})
}

func (g *FavoriteGraph) write(ctx context.Context, cypher string, params map[string]interface{}) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("favorite graph write failed: %w", err)
	}

	return nil
}

// AlsoFavorited returns ids of shows favorited by users who also favorited
// showID, most shared first.
func (g *FavoriteGraph) AlsoFavorited(ctx context.Context, showID int64, limit int) ([]int64, error) {
	if !g.Enabled() {
		return []int64{}, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (:Show {id: $showId})<-[:FAVORITED]-(u:User)-[:FAVORITED]->(other:Show)
		WHERE other.id <> $showId
		WITH other, count(DISTINCT u) AS shared
		RETURN other.id AS show_id, shared
		ORDER BY shared DESC, show_id ASC
		LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"showId": showID,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("also favorited query failed: %w", err)
	}

	ids := []int64{}
	for result.Next(ctx) {
		record := result.Record()
		id, ok := record.Values[0].(int64)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("also favorited query failed: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"show_id": showID,
		"matches": len(ids),
	}).Debug("Also-favorited lookup")

	return ids, nil
}
