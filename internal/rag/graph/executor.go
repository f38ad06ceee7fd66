package graph

import (
	"context"
	"errors"
	"fmt"
)

// Row is one result record keyed by the RETURN aliases.
type Row map[string]any

// Query is a named, parameterised graph query. Name identifies the query shape so
// executors that do not speak Cypher (MemoryGraph) can still answer it.
type Query struct {
	Name   string
	Cypher string
	Params map[string]any
}

// Executor runs read-only graph queries.
type Executor interface {
	Run(ctx context.Context, q Query) ([]Row, error)
}

const (
	QueryMultiHop         = "multi_hop"
	QueryFindPaths        = "find_paths"
	QueryCommunityEdges   = "community_edges"
	QueryInducedEdges     = "induced_edges"
	QueryEntityNodes      = "entity_nodes"
	QueryEntityEmbeddings = "entity_embeddings"
	QuerySubgraphNodes    = "subgraph_nodes"
	QuerySubgraphRels     = "subgraph_relationships"
	QueryDynamicTraversal = "dynamic_traversal"
	QueryEntityRelations  = "entity_relations"
	QueryPattern          = "pattern"
)

var ErrUnsupportedQuery = errors.New("graph: unsupported query")

func unsupported(name string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedQuery, name)
}

func (r Row) Text(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Float returns the value and whether it was present and numeric.
func (r Row) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (r Row) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			} else if x != nil {
				out = append(out, fmt.Sprint(x))
			}
		}
		return out
	default:
		return nil
	}
}

// Vector decodes an embedding property. Neo4j hands lists back as []any of float64.
func (r Row) Vector(key string) []float32 {
	switch v := r[key].(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(v))
		for _, x := range v {
			switch f := x.(type) {
			case float64:
				out = append(out, float32(f))
			case float32:
				out = append(out, f)
			case int64:
				out = append(out, float32(f))
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}

// Maps decodes a list of maps (e.g. nodes/relationships projections).
func (r Row) Maps(key string) []Row {
	raw, ok := r[key].([]any)
	if !ok {
		if typed, ok := r[key].([]map[string]any); ok {
			out := make([]Row, len(typed))
			for i, m := range typed {
				out[i] = Row(m)
			}
			return out
		}
		return nil
	}
	out := make([]Row, 0, len(raw))
	for _, x := range raw {
		if m, ok := x.(map[string]any); ok {
			out = append(out, Row(m))
		}
	}
	return out
}
