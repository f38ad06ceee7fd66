package graph

import (
	"context"
	"fmt"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
	ragraph "github.com/yungbote/graphrag-core/internal/rag/graph"
)

// RowReader is the read side of neo4jdb.Client.
type RowReader interface {
	ReadRows(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Neo4jExecutor runs traverser queries as Cypher read transactions.
type Neo4jExecutor struct {
	client RowReader
	log    *logger.Logger
}

var _ ragraph.Executor = (*Neo4jExecutor)(nil)

func NewNeo4jExecutor(client RowReader, log *logger.Logger) *Neo4jExecutor {
	if log == nil {
		log = logger.Nop()
	}
	return &Neo4jExecutor{client: client, log: log.With("component", "Neo4jExecutor")}
}

func (e *Neo4jExecutor) Run(ctx context.Context, q ragraph.Query) ([]ragraph.Row, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("neo4j executor: client not configured")
	}
	rows, err := e.client.ReadRows(ctx, q.Cypher, normalizeParams(q.Params))
	if err != nil {
		return nil, fmt.Errorf("neo4j executor: %s: %w", q.Name, err)
	}
	out := make([]ragraph.Row, len(rows))
	for i, r := range rows {
		out[i] = ragraph.Row(r)
	}
	e.log.Debug("graph query", "query", q.Name, "rows", len(out))
	return out, nil
}

// normalizeParams widens ints to int64; the driver only packs sized integers.
func normalizeParams(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch n := v.(type) {
		case int:
			out[k] = int64(n)
		case int32:
			out[k] = int64(n)
		default:
			out[k] = v
		}
	}
	return out
}
