package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	ragraph "github.com/yungbote/graphrag-core/internal/rag/graph"
)

const (
	documentsCypher = `
MATCH (d:Document)
RETURN d.id AS id, d.title AS title, d.content AS content, d.source AS source,
       d.embedding AS embedding, d.createdAt AS createdAt, d.updatedAt AS updatedAt
ORDER BY d.id
LIMIT $limit`

	entitiesCypher = `
MATCH (e:Entity)
RETURN e.id AS id, e.name AS name, e.type AS type, e.description AS description,
       e.embedding AS embedding
ORDER BY e.name, e.type
LIMIT $limit`
)

// Neo4jCandidates loads Document and Entity nodes as candidate pools.
type Neo4jCandidates struct {
	client RowReader
	limit  int
	log    *logger.Logger
}

func NewNeo4jCandidates(client RowReader, limit int, log *logger.Logger) *Neo4jCandidates {
	if log == nil {
		log = logger.Nop()
	}
	if limit <= 0 {
		limit = 10000
	}
	return &Neo4jCandidates{client: client, limit: limit, log: log.With("component", "Neo4jCandidates")}
}

func (c *Neo4jCandidates) Documents(ctx context.Context) ([]graphrag.Document, error) {
	rows, err := c.client.ReadRows(ctx, documentsCypher, map[string]any{"limit": int64(c.limit)})
	if err != nil {
		return nil, fmt.Errorf("neo4j candidates: documents: %w", err)
	}
	out := make([]graphrag.Document, 0, len(rows))
	for _, m := range rows {
		r := ragraph.Row(m)
		id := r.Text("id")
		if strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, graphrag.Document{
			ID:        id,
			Title:     r.Text("title"),
			Content:   r.Text("content"),
			Source:    r.Text("source"),
			Embedding: r.Vector("embedding"),
			CreatedAt: decodeTime(m["createdAt"]),
			UpdatedAt: decodeTime(m["updatedAt"]),
		})
	}
	c.log.Debug("documents loaded", "count", len(out))
	return out, nil
}

func (c *Neo4jCandidates) Entities(ctx context.Context) ([]graphrag.Entity, error) {
	rows, err := c.client.ReadRows(ctx, entitiesCypher, map[string]any{"limit": int64(c.limit)})
	if err != nil {
		return nil, fmt.Errorf("neo4j candidates: entities: %w", err)
	}
	out := make([]graphrag.Entity, 0, len(rows))
	for _, m := range rows {
		r := ragraph.Row(m)
		name := r.Text("name")
		if strings.TrimSpace(name) == "" {
			continue
		}
		id := r.Text("id")
		if id == "" {
			id = name + "|" + r.Text("type")
		}
		out = append(out, graphrag.Entity{
			ID:          id,
			Name:        name,
			Type:        r.Text("type"),
			Description: r.Text("description"),
			Embedding:   r.Vector("embedding"),
		})
	}
	c.log.Debug("entities loaded", "count", len(out))
	return out, nil
}

// decodeTime accepts driver temporal values (time.Time, or LocalDateTime and friends via
// Time()) and RFC3339 strings, which is how the ingestion side writes timestamps.
func decodeTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case interface{ Time() time.Time }:
		tt := t.Time()
		return &tt
	case string:
		if p, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return &p
		}
	}
	return nil
}
