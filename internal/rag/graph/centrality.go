package graph

// induced is an undirected graph restricted to a fixed member set.
type induced struct {
	members []string
	adj     map[string]map[string]struct{}
}

func newInduced(members []string) *induced {
	g := &induced{members: members, adj: make(map[string]map[string]struct{}, len(members))}
	for _, m := range members {
		g.adj[m] = map[string]struct{}{}
	}
	return g
}

func (g *induced) connect(a, b string) {
	if a == b {
		return
	}
	if _, ok := g.adj[a]; !ok {
		return
	}
	if _, ok := g.adj[b]; !ok {
		return
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

func (g *induced) degree() map[string]float64 {
	out := make(map[string]float64, len(g.members))
	for _, m := range g.members {
		out[m] = float64(len(g.adj[m]))
	}
	return out
}

// bfs returns hop distances and shortest-path counts from src.
func (g *induced) bfs(src string) (map[string]int, map[string]float64) {
	dist := map[string]int{src: 0}
	sigma := map[string]float64{src: 1}
	queue := []string{src}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for w := range g.adj[v] {
			if _, seen := dist[w]; !seen {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
			}
		}
	}
	return dist, sigma
}

// betweenness sums, for every unordered pair s<t, the number of shortest s-t paths through v.
// Counts are raw, not normalised by the pair's total path count.
func (g *induced) betweenness() map[string]float64 {
	dist := make(map[string]map[string]int, len(g.members))
	sigma := make(map[string]map[string]float64, len(g.members))
	for _, m := range g.members {
		dist[m], sigma[m] = g.bfs(m)
	}
	out := make(map[string]float64, len(g.members))
	for i, s := range g.members {
		for _, t := range g.members[i+1:] {
			dst, ok := dist[s][t]
			if !ok {
				continue
			}
			for _, v := range g.members {
				if v == s || v == t {
					continue
				}
				dsv, ok1 := dist[s][v]
				dvt, ok2 := dist[v][t]
				if ok1 && ok2 && dsv+dvt == dst {
					out[v] += sigma[s][v] * sigma[v][t]
				}
			}
		}
	}
	for _, m := range g.members {
		if _, ok := out[m]; !ok {
			out[m] = 0
		}
	}
	return out
}

// closeness is the reciprocal of the mean distance to reachable members; 0 when isolated.
func (g *induced) closeness() map[string]float64 {
	out := make(map[string]float64, len(g.members))
	for _, m := range g.members {
		dist, _ := g.bfs(m)
		total, n := 0, 0
		for other, d := range dist {
			if other == m {
				continue
			}
			total += d
			n++
		}
		if n == 0 || total == 0 {
			out[m] = 0
			continue
		}
		out[m] = float64(n) / float64(total)
	}
	return out
}
