package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	apperrors "contentgraph/backend/pkg/errors"
	"contentgraph/backend/pkg/logger"
)

// Neo4jStore keeps entries as (:ContentEntry {collection, id, data}) nodes
// with the data map serialised as JSON.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jStore wraps an existing driver
func NewNeo4jStore(driver neo4j.DriverWithContext, log *zap.Logger) *Neo4jStore {
	return &Neo4jStore{
		driver: driver,
		logger: logger.OrDefault(log),
	}
}

// ConnectNeo4j creates a driver and verifies connectivity
func ConnectNeo4j(ctx context.Context, uri, user, password string, log *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("neo4j", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewStoreUnavailable("neo4j", err)
	}
	return NewNeo4jStore(driver, log), nil
}

// Close closes the Neo4j driver connection
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// EnsureSchema creates the uniqueness constraint and collection index
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT content_entry_key IF NOT EXISTS FOR (e:ContentEntry) REQUIRE (e.collection, e.id) IS UNIQUE",
		"CREATE INDEX content_entry_collection IF NOT EXISTS FOR (e:ContentEntry) ON (e.collection)",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Entries implements content.Store
func (s *Neo4jStore) Entries(ctx context.Context, collection string) ([]content.Entry, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:ContentEntry {collection: $collection})
		RETURN e.id AS id, e.data AS data
		ORDER BY coalesce(e.position, 0), e.id
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"collection": collection,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("neo4j", err)
	}

	var out []content.Entry
	for result.Next(ctx) {
		record := result.Record()
		id := recordString(record, "id")
		if id == "" {
			continue
		}
		data := map[string]any{}
		if raw := recordString(record, "data"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				s.logger.Warn("Skipping entry with malformed data",
					zap.String("collection", collection),
					zap.String("id", id),
					zap.Error(err),
				)
				continue
			}
		}
		out = append(out, content.Entry{Collection: collection, ID: id, Data: data})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return out, nil
}

// Collections implements content.Store
func (s *Neo4jStore) Collections(ctx context.Context) ([]string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (e:ContentEntry)
		RETURN DISTINCT e.collection AS collection
		ORDER BY collection
	`, nil)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("neo4j", err)
	}

	var out []string
	for result.Next(ctx) {
		if c := recordString(result.Record(), "collection"); c != "" {
			out = append(out, c)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}
	return out, nil
}

// Upsert writes entries, replacing the data of existing ones. Position keeps
// the given order for later reads.
func (s *Neo4jStore) Upsert(ctx context.Context, entries ...content.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(entries))
	for i, e := range entries {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.Key(), err)
		}
		rows = append(rows, map[string]interface{}{
			"collection": e.Collection,
			"id":         e.ID,
			"data":       string(raw),
			"position":   i,
		})
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		UNWIND $rows AS row
		MERGE (e:ContentEntry {collection: row.collection, id: row.id})
		SET e.data = row.data,
		    e.position = row.position,
		    e.updated_at = datetime()
	`
	if _, err := session.Run(ctx, query, map[string]interface{}{"rows": rows}); err != nil {
		return fmt.Errorf("failed to upsert entries: %w", err)
	}

	s.logger.Info("Entries upserted", zap.Int("count", len(entries)))
	return nil
}

// DeleteCollection removes every entry of a collection with its relationships
func (s *Neo4jStore) DeleteCollection(ctx context.Context, collection string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "MATCH (e:ContentEntry {collection: $collection}) DETACH DELETE e", map[string]interface{}{
		"collection": collection,
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// SyncRelations mirrors the reference and hierarchy edges of a built graph
// as REFERENCES and CHILD_OF relationships, replacing earlier ones.
func (s *Neo4jStore) SyncRelations(ctx context.Context, g *graph.Graph) error {
	var refs, parents []map[string]interface{}
	for _, key := range g.Keys() {
		rm, _ := g.Relations(key.Collection, key.ID)
		for _, r := range rm.References {
			refs = append(refs, map[string]interface{}{
				"fromCollection": key.Collection, "fromID": key.ID,
				"toCollection": r.Collection, "toID": r.ID,
				"field": r.Field,
			})
		}
		for _, p := range rm.Parents {
			parents = append(parents, map[string]interface{}{
				"fromCollection": key.Collection, "fromID": key.ID,
				"toCollection": p.Collection, "toID": p.ID,
			})
		}
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []struct {
		query  string
		params map[string]interface{}
	}{
		{"MATCH (:ContentEntry)-[r:REFERENCES|CHILD_OF]->(:ContentEntry) DELETE r", nil},
		{`
		UNWIND $rows AS row
		MATCH (a:ContentEntry {collection: row.fromCollection, id: row.fromID})
		MATCH (b:ContentEntry {collection: row.toCollection, id: row.toID})
		MERGE (a)-[r:REFERENCES {field: row.field}]->(b)
		`, map[string]interface{}{"rows": refs}},
		{`
		UNWIND $rows AS row
		MATCH (a:ContentEntry {collection: row.fromCollection, id: row.fromID})
		MATCH (b:ContentEntry {collection: row.toCollection, id: row.toID})
		MERGE (a)-[:CHILD_OF]->(b)
		`, map[string]interface{}{"rows": parents}},
	}
	for _, st := range statements {
		if _, err := session.Run(ctx, st.query, st.params); err != nil {
			return fmt.Errorf("failed to sync relations: %w", err)
		}
	}

	s.logger.Info("Relations synced",
		zap.String("build_id", g.BuildID),
		zap.Int("references", len(refs)),
		zap.Int("parents", len(parents)),
	)
	return nil
}

func recordString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
