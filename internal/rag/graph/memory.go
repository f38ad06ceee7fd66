package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

type memNode struct {
	name        string
	typ         string
	description string
	embedding   []float32
}

type memEdge struct {
	source      string
	target      string
	typ         string
	description string
	weight      float64
}

// MemoryGraph is an in-process Executor. It answers the named queries the Traverser
// issues without a database; free-form Cypher (QueryPattern) is not supported.
type MemoryGraph struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
	order []string
	edges []memEdge
	adj   map[string][]int
}

var _ Executor = (*MemoryGraph)(nil)

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{nodes: map[string]*memNode{}, adj: map[string][]int{}}
}

// AddEntity inserts or replaces the node named e.Name.
func (g *MemoryGraph) AddEntity(e graphrag.Entity) error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return fmt.Errorf("graph: entity name required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[name]; !ok {
		g.order = append(g.order, name)
	}
	g.nodes[name] = &memNode{
		name:        name,
		typ:         e.Type,
		description: e.Description,
		embedding:   append([]float32(nil), e.Embedding...),
	}
	return nil
}

// AddRelation adds a directed edge; both endpoints must already exist.
func (g *MemoryGraph) AddRelation(r graphrag.Relation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[r.Source]; !ok {
		return fmt.Errorf("graph: unknown source entity %q", r.Source)
	}
	if _, ok := g.nodes[r.Target]; !ok {
		return fmt.Errorf("graph: unknown target entity %q", r.Target)
	}
	typ := strings.TrimSpace(r.Type)
	if typ == "" {
		typ = "RELATED_TO"
	}
	idx := len(g.edges)
	g.edges = append(g.edges, memEdge{source: r.Source, target: r.Target, typ: typ, description: r.Description, weight: r.Weight})
	g.adj[r.Source] = append(g.adj[r.Source], idx)
	if r.Target != r.Source {
		g.adj[r.Target] = append(g.adj[r.Target], idx)
	}
	return nil
}

func (g *MemoryGraph) Run(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	p := q.Params
	switch q.Name {
	case QueryMultiHop:
		return g.traverse(paramString(p, "startEntity"), nil, paramInt(p, "maxHops"), paramInt(p, "maxResults"), "pathLength", true), nil
	case QueryDynamicTraversal:
		return g.traverse(paramString(p, "startEntity"), paramStrings(p, "relationshipTypes"), paramInt(p, "maxDepth"), paramInt(p, "maxResults"), "depth", false), nil
	case QueryFindPaths:
		return g.findPaths(paramString(p, "entity1"), paramString(p, "entity2"), paramInt(p, "maxLength")), nil
	case QueryCommunityEdges:
		threshold, _ := Row(p).Float("threshold")
		return g.communityEdges(paramStrings(p, "entityNames"), threshold), nil
	case QueryInducedEdges:
		return g.inducedEdges(paramStrings(p, "entityNames")), nil
	case QueryEntityNodes:
		var out []Row
		for _, n := range g.lookup(paramStrings(p, "entityNames")) {
			out = append(out, Row{"name": n.name, "type": n.typ})
		}
		return out, nil
	case QueryEntityEmbeddings:
		var out []Row
		for _, n := range g.lookup(paramStrings(p, "entityNames")) {
			if len(n.embedding) > 0 {
				out = append(out, Row{"name": n.name, "embedding": append([]float32(nil), n.embedding...)})
			}
		}
		return out, nil
	case QuerySubgraphNodes:
		var out []Row
		for _, name := range g.neighbourhood(paramStrings(p, "entityNames"), paramInt(p, "maxDepth")) {
			n := g.nodes[name]
			out = append(out, Row{"name": n.name, "type": n.typ, "description": n.description})
		}
		return out, nil
	case QuerySubgraphRels:
		return g.subgraphRels(paramStrings(p, "entityNames"), paramInt(p, "maxDepth")), nil
	case QueryEntityRelations:
		return g.entityRelations(paramStrings(p, "entityNames"), paramInt(p, "limit")), nil
	default:
		return nil, unsupported(q.Name)
	}
}

func (g *MemoryGraph) lookup(names []string) []*memNode {
	var out []*memNode
	seen := map[string]struct{}{}
	for _, n := range names {
		node, ok := g.nodes[n]
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, node)
	}
	return out
}

func (g *MemoryGraph) other(e memEdge, from string) string {
	if e.source == from {
		return e.target
	}
	return e.source
}

type visit struct {
	parent string
	edge   int
	depth  int
}

// traverse runs an undirected BFS from start, optionally restricted to relTypes, and
// returns one row per reached node with its shortest path.
func (g *MemoryGraph) traverse(start string, relTypes []string, maxDepth, maxResults int, depthKey string, withRelTypes bool) []Row {
	if _, ok := g.nodes[start]; !ok || maxResults <= 0 {
		return nil
	}
	maxDepth = clampHops(maxDepth)
	allowed := map[string]struct{}{}
	for _, t := range relTypes {
		allowed[t] = struct{}{}
	}

	seen := map[string]visit{start: {edge: -1}}
	queue := []string{start}
	var reached []string
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if seen[v].depth == maxDepth {
			continue
		}
		for _, ei := range g.adj[v] {
			e := g.edges[ei]
			if len(allowed) > 0 {
				if _, ok := allowed[e.typ]; !ok {
					continue
				}
			}
			w := g.other(e, v)
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = visit{parent: v, edge: ei, depth: seen[v].depth + 1}
			queue = append(queue, w)
			reached = append(reached, w)
		}
	}

	sort.SliceStable(reached, func(i, j int) bool {
		if seen[reached[i]].depth != seen[reached[j]].depth {
			return seen[reached[i]].depth < seen[reached[j]].depth
		}
		return reached[i] < reached[j]
	})
	if len(reached) > maxResults {
		reached = reached[:maxResults]
	}

	out := make([]Row, 0, len(reached))
	for _, name := range reached {
		var nodes, types []string
		for cur := name; ; cur = seen[cur].parent {
			nodes = append(nodes, cur)
			if seen[cur].edge < 0 {
				break
			}
			types = append(types, g.edges[seen[cur].edge].typ)
		}
		slices.Reverse(nodes)
		slices.Reverse(types)
		n := g.nodes[name]
		row := Row{
			"entityName":  n.name,
			"entityType":  n.typ,
			"description": n.description,
			depthKey:      seen[name].depth,
			"pathNodes":   nodes,
		}
		if withRelTypes {
			row["relationshipTypes"] = types
		}
		out = append(out, row)
	}
	return out
}

func (g *MemoryGraph) findPaths(a, b string, maxLen int) []Row {
	if _, ok := g.nodes[a]; !ok {
		return nil
	}
	if _, ok := g.nodes[b]; !ok || a == b {
		return nil
	}
	maxLen = clampHops(maxLen)

	type found struct {
		nodes []string
		edges []int
	}
	var paths []found
	onPath := map[string]bool{a: true}
	var nodes []string
	var edges []int
	nodes = append(nodes, a)
	var dfs func(v string)
	dfs = func(v string) {
		if len(edges) == maxLen {
			return
		}
		for _, ei := range g.adj[v] {
			w := g.other(g.edges[ei], v)
			if onPath[w] {
				continue
			}
			nodes = append(nodes, w)
			edges = append(edges, ei)
			if w == b {
				paths = append(paths, found{nodes: append([]string(nil), nodes...), edges: append([]int(nil), edges...)})
			} else {
				onPath[w] = true
				dfs(w)
				onPath[w] = false
			}
			nodes = nodes[:len(nodes)-1]
			edges = edges[:len(edges)-1]
		}
	}
	dfs(a)

	sort.SliceStable(paths, func(i, j int) bool { return len(paths[i].edges) < len(paths[j].edges) })
	if len(paths) > maxPaths {
		paths = paths[:maxPaths]
	}
	out := make([]Row, 0, len(paths))
	for _, p := range paths {
		ns := make([]any, 0, len(p.nodes))
		for _, name := range p.nodes {
			ns = append(ns, map[string]any{"name": name, "type": g.nodes[name].typ})
		}
		rs := make([]any, 0, len(p.edges))
		for _, ei := range p.edges {
			rs = append(rs, map[string]any{"type": g.edges[ei].typ, "description": g.edges[ei].description})
		}
		out = append(out, Row{"nodes": ns, "relationships": rs, "pathLength": len(p.edges)})
	}
	return out
}

func (g *MemoryGraph) memberSet(names []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, n := range g.lookup(names) {
		set[n.name] = struct{}{}
	}
	return set
}

func (g *MemoryGraph) communityEdges(names []string, threshold float64) []Row {
	set := g.memberSet(names)
	var out []Row
	for _, e := range g.edges {
		_, okA := set[e.source]
		_, okB := set[e.target]
		if !okA || !okB || e.source == e.target || e.weight < threshold {
			continue
		}
		a, b := e.source, e.target
		if b < a {
			a, b = b, a
		}
		out = append(out, Row{"entity1": a, "entity2": b, "weight": e.weight})
	}
	return out
}

func (g *MemoryGraph) inducedEdges(names []string) []Row {
	set := g.memberSet(names)
	seen := map[[2]string]struct{}{}
	var out []Row
	for _, e := range g.edges {
		_, okA := set[e.source]
		_, okB := set[e.target]
		if !okA || !okB || e.source == e.target {
			continue
		}
		a, b := e.source, e.target
		if b < a {
			a, b = b, a
		}
		if _, dup := seen[[2]string{a, b}]; dup {
			continue
		}
		seen[[2]string{a, b}] = struct{}{}
		out = append(out, Row{"source": a, "target": b})
	}
	return out
}

// neighbourhood returns the known seeds plus everything within depth hops, in discovery order.
func (g *MemoryGraph) neighbourhood(names []string, depth int) []string {
	depth = clampHops(depth)
	dist := map[string]int{}
	var order, queue []string
	for _, n := range g.lookup(names) {
		dist[n.name] = 0
		order = append(order, n.name)
		queue = append(queue, n.name)
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if dist[v] == depth {
			continue
		}
		for _, ei := range g.adj[v] {
			w := g.other(g.edges[ei], v)
			if _, ok := dist[w]; ok {
				continue
			}
			dist[w] = dist[v] + 1
			order = append(order, w)
			queue = append(queue, w)
		}
	}
	return order
}

func (g *MemoryGraph) subgraphRels(names []string, depth int) []Row {
	set := map[string]struct{}{}
	for _, n := range g.neighbourhood(names, depth) {
		set[n] = struct{}{}
	}
	var out []Row
	for _, e := range g.edges {
		_, okA := set[e.source]
		_, okB := set[e.target]
		if !okA || !okB {
			continue
		}
		out = append(out, Row{
			"source":           e.source,
			"target":           e.target,
			"relationshipType": e.typ,
			"description":      e.description,
			"weight":           e.weight,
		})
	}
	return out
}

func (g *MemoryGraph) entityRelations(names []string, limit int) []Row {
	if limit <= 0 {
		limit = entityRelationsLimit
	}
	set := g.memberSet(names)
	var out []Row
	for _, e := range g.edges {
		_, okA := set[e.source]
		_, okB := set[e.target]
		if !okA && !okB {
			continue
		}
		out = append(out, Row{"entity1": e.source, "relationship": e.typ, "entity2": e.target, "description": e.description})
		if len(out) == limit {
			break
		}
	}
	return out
}

func paramString(p map[string]any, key string) string {
	return Row(p).Text(key)
}

func paramInt(p map[string]any, key string) int {
	return Row(p).Int(key)
}

func paramStrings(p map[string]any, key string) []string {
	return Row(p).Strings(key)
}
