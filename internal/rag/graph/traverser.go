package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

// Traverser answers graph questions through an Executor. Executor failures degrade to
// empty results; only caller mistakes (unknown centrality kind) are returned as errors.
type Traverser struct {
	log  *logger.Logger
	exec Executor
}

func NewTraverser(log *logger.Logger, exec Executor) *Traverser {
	if log == nil {
		log = logger.Nop()
	}
	return &Traverser{log: log.With("component", "GraphTraverser"), exec: exec}
}

func (t *Traverser) run(ctx context.Context, q Query) []Row {
	if t.exec == nil {
		return nil
	}
	rows, err := t.exec.Run(ctx, q)
	if err != nil {
		t.log.Debug("graph query degraded to empty", "query", q.Name, "error", err)
		return nil
	}
	return rows
}

// MultiHop returns distinct entities reachable from start within maxHops, ordered by
// (path length, name) and capped at maxResults.
func (t *Traverser) MultiHop(ctx context.Context, start string, maxHops, maxResults int) []Hop {
	out := []Hop{}
	if strings.TrimSpace(start) == "" || maxResults <= 0 {
		return out
	}
	seen := map[string]struct{}{}
	for _, r := range t.run(ctx, multiHopQuery(start, maxHops, maxResults)) {
		h := Hop{
			EntityName:        r.Text("entityName"),
			EntityType:        r.Text("entityType"),
			Description:       r.Text("description"),
			PathLength:        r.Int("pathLength"),
			PathNodes:         r.Strings("pathNodes"),
			RelationshipTypes: r.Strings("relationshipTypes"),
		}
		if h.EntityName == "" || h.EntityName == start {
			continue
		}
		if _, ok := seen[h.EntityName]; ok {
			continue
		}
		seen[h.EntityName] = struct{}{}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PathLength != out[j].PathLength {
			return out[i].PathLength < out[j].PathLength
		}
		return out[i].EntityName < out[j].EntityName
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

const maxPaths = 10

// FindPaths returns up to 10 paths between a and b, shortest first.
func (t *Traverser) FindPaths(ctx context.Context, a, b string, maxLen int) []Path {
	out := []Path{}
	for _, r := range t.run(ctx, findPathsQuery(a, b, maxLen)) {
		p := Path{Length: r.Int("pathLength")}
		for _, n := range r.Maps("nodes") {
			p.Nodes = append(p.Nodes, PathNode{Name: n.Text("name"), Type: n.Text("type")})
		}
		for _, rel := range r.Maps("relationships") {
			p.Relationships = append(p.Relationships, PathRel{Type: rel.Text("type"), Description: rel.Text("description")})
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Length < out[j].Length })
	if len(out) > maxPaths {
		out = out[:maxPaths]
	}
	return out
}

// DetectCommunities is an edge filter: edges with both ends in names and weight ≥ threshold,
// heaviest first. Grouping into communities is left to the caller.
func (t *Traverser) DetectCommunities(ctx context.Context, names []string, threshold float64) []Edge {
	out := []Edge{}
	names = distinct(names)
	if len(names) < 2 {
		return out
	}
	for _, r := range t.run(ctx, communityEdgesQuery(names, threshold)) {
		w, ok := r.Float("weight")
		if !ok || w < threshold {
			continue
		}
		a, b := r.Text("entity1"), r.Text("entity2")
		if b < a {
			a, b = b, a
		}
		out = append(out, Edge{Entity1: a, Entity2: b, Weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].Entity1 != out[j].Entity1 {
			return out[i].Entity1 < out[j].Entity1
		}
		return out[i].Entity2 < out[j].Entity2
	})
	return out
}

// Centrality scores each known entity in names over the subgraph induced by names.
func (t *Traverser) Centrality(ctx context.Context, names []string, kind CentralityKind) ([]CentralityScore, error) {
	kind = CentralityKind(strings.ToLower(strings.TrimSpace(string(kind))))
	switch kind {
	case CentralityDegree, CentralityBetweenness, CentralityCloseness:
	default:
		return nil, ragerr.Invalid("graph.centrality", "unsupported centrality type: %q", kind)
	}
	names = distinct(names)
	if len(names) == 0 {
		return []CentralityScore{}, nil
	}

	types := map[string]string{}
	members := []string{}
	for _, r := range t.run(ctx, entityNodesQuery(names)) {
		n := r.Text("name")
		if n == "" {
			continue
		}
		if _, ok := types[n]; !ok {
			members = append(members, n)
		}
		types[n] = r.Text("type")
	}
	if len(members) == 0 {
		return []CentralityScore{}, nil
	}

	g := newInduced(members)
	for _, r := range t.run(ctx, inducedEdgesQuery(names)) {
		g.connect(r.Text("source"), r.Text("target"))
	}

	var scores map[string]float64
	switch kind {
	case CentralityDegree:
		scores = g.degree()
	case CentralityBetweenness:
		scores = g.betweenness()
	case CentralityCloseness:
		scores = g.closeness()
	}

	out := make([]CentralityScore, 0, len(members))
	for _, m := range members {
		out = append(out, CentralityScore{EntityName: m, EntityType: types[m], Kind: kind, Score: scores[m]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EntityName < out[j].EntityName
	})
	return out, nil
}

// ClusterSimilarEntities greedily groups entities whose stored embeddings are at least
// threshold-similar to a cluster's seed. Single-member clusters are dropped.
func (t *Traverser) ClusterSimilarEntities(ctx context.Context, names []string, threshold float64) [][]string {
	out := [][]string{}
	type named struct {
		name string
		vec  []float32
	}
	var items []named
	seenName := map[string]struct{}{}
	for _, r := range t.run(ctx, entityEmbeddingsQuery(distinct(names))) {
		n, v := r.Text("name"), r.Vector("embedding")
		if n == "" || len(v) == 0 {
			continue
		}
		if _, ok := seenName[n]; ok {
			continue
		}
		seenName[n] = struct{}{}
		items = append(items, named{name: n, vec: v})
	}

	processed := make([]bool, len(items))
	for i := range items {
		if processed[i] {
			continue
		}
		processed[i] = true
		cluster := []string{items[i].name}
		for j := range items {
			if processed[j] {
				continue
			}
			if embedding.Similarity(items[i].vec, items[j].vec) >= threshold {
				cluster = append(cluster, items[j].name)
				processed[j] = true
			}
		}
		if len(cluster) > 1 {
			out = append(out, cluster)
		}
	}
	return out
}

// ExtractSubgraph returns the entities within maxDepth of names and the relationships among them.
func (t *Traverser) ExtractSubgraph(ctx context.Context, names []string, maxDepth int) Subgraph {
	names = distinct(names)
	sg := Subgraph{Nodes: []SubgraphNode{}, Relationships: []SubgraphRel{}}
	if len(names) == 0 {
		return sg
	}
	for _, r := range t.run(ctx, subgraphNodesQuery(names, maxDepth)) {
		if r.Text("name") == "" {
			continue
		}
		sg.Nodes = append(sg.Nodes, SubgraphNode{Name: r.Text("name"), Type: r.Text("type"), Description: r.Text("description")})
	}
	for _, r := range t.run(ctx, subgraphRelationshipsQuery(names, maxDepth)) {
		w, _ := r.Float("weight")
		sg.Relationships = append(sg.Relationships, SubgraphRel{
			Source:      r.Text("source"),
			Target:      r.Text("target"),
			Type:        r.Text("relationshipType"),
			Description: r.Text("description"),
			Weight:      w,
		})
	}
	sg.NodeCount = len(sg.Nodes)
	sg.RelationshipCount = len(sg.Relationships)
	return sg
}

// PatternMatching runs a caller-supplied Cypher pattern. Any failure yields no rows.
func (t *Traverser) PatternMatching(ctx context.Context, cypher string, params map[string]any) []Row {
	if strings.TrimSpace(cypher) == "" {
		return []Row{}
	}
	rows := t.run(ctx, Query{Name: QueryPattern, Cypher: cypher, Params: params})
	if rows == nil {
		return []Row{}
	}
	return rows
}

// DynamicTraversal is MultiHop restricted to relationTypes (empty means any type).
func (t *Traverser) DynamicTraversal(ctx context.Context, start string, relTypes []string, maxDepth, maxResults int) []Hop {
	out := []Hop{}
	if strings.TrimSpace(start) == "" || maxResults <= 0 {
		return out
	}
	seen := map[string]struct{}{}
	for _, r := range t.run(ctx, dynamicTraversalQuery(start, distinct(relTypes), maxDepth, maxResults)) {
		h := Hop{
			EntityName:  r.Text("entityName"),
			EntityType:  r.Text("entityType"),
			Description: r.Text("description"),
			PathLength:  r.Int("depth"),
			PathNodes:   r.Strings("pathNodes"),
		}
		if h.EntityName == "" || h.EntityName == start {
			continue
		}
		if _, ok := seen[h.EntityName]; ok {
			continue
		}
		seen[h.EntityName] = struct{}{}
		out = append(out, h)
	}
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// EntityRelations returns up to 50 relations touching any of names.
func (t *Traverser) EntityRelations(ctx context.Context, names []string) []graphrag.Relation {
	out := []graphrag.Relation{}
	names = distinct(names)
	if len(names) == 0 {
		return out
	}
	for _, r := range t.run(ctx, entityRelationsQuery(names)) {
		out = append(out, graphrag.Relation{
			Source:      r.Text("entity1"),
			Type:        r.Text("relationship"),
			Target:      r.Text("entity2"),
			Description: r.Text("description"),
			Directed:    true,
		})
		if len(out) == entityRelationsLimit {
			break
		}
	}
	return out
}

// HopsToRelations turns traversal results into relation tuples anchored at start.
func HopsToRelations(start string, hops []Hop) []graphrag.Relation {
	out := make([]graphrag.Relation, 0, len(hops))
	for _, h := range hops {
		out = append(out, graphrag.Relation{
			Source:      start,
			Type:        strings.Join(h.RelationshipTypes, " -> "),
			Target:      h.EntityName,
			Description: h.Description,
		})
	}
	return out
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
