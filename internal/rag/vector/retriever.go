package vector

import (
	"context"
	"strings"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
)

// Candidate is anything with an embedding and a human label. Document and Entity both qualify.
type Candidate interface {
	Vector() []float32
	Label() string
	Origin() string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever scores caller-supplied candidate pools against queries. It never mutates the pool.
// Candidates without a vector, or whose vector length differs from the query's, are skipped.
type Retriever[T Candidate] struct {
	log *logger.Logger
	emb Embedder
}

func New[T Candidate](log *logger.Logger, emb Embedder) *Retriever[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Retriever[T]{log: log.With("component", "VectorRetriever"), emb: emb}
}

// score returns cos(q, item) and whether the item is comparable at all.
func score(q []float32, item Candidate) (float64, bool) {
	v := item.Vector()
	if len(v) == 0 || len(v) != len(q) {
		return 0, false
	}
	s, err := embedding.Cosine(q, v)
	if err != nil {
		return 0, false
	}
	return s, true
}

func topN[T any](in []graphrag.Scored[T], k int) []graphrag.Scored[T] {
	graphrag.SortScored(in)
	if k >= 0 && len(in) > k {
		in = in[:k]
	}
	return in
}

// TopK scores pool against an already-embedded query.
func TopK[T Candidate](q []float32, pool []T, k int) []graphrag.Scored[T] {
	out := make([]graphrag.Scored[T], 0, len(pool))
	for _, item := range pool {
		s, ok := score(q, item)
		if !ok {
			continue
		}
		out = append(out, graphrag.Scored[T]{Item: item, Score: s})
	}
	return topN(out, k)
}

// MostSimilar returns the best match for q, or false when nothing is comparable.
func MostSimilar[T Candidate](q []float32, pool []T) (graphrag.Scored[T], bool) {
	best := TopK(q, pool, 1)
	if len(best) == 0 {
		return graphrag.Scored[T]{}, false
	}
	return best[0], true
}

// MultiQuery embeds all queries in one batch and scores each candidate by its best
// match across them, floored at 0.
func (r *Retriever[T]) MultiQuery(ctx context.Context, queries []string, pool []T, topK int) ([]graphrag.Scored[T], error) {
	if len(queries) == 0 || len(pool) == 0 {
		return []graphrag.Scored[T]{}, nil
	}
	qvs, err := r.emb.EmbedBatch(ctx, queries)
	if err != nil {
		return nil, err
	}

	out := make([]graphrag.Scored[T], 0, len(pool))
	for _, item := range pool {
		if len(item.Vector()) == 0 {
			continue
		}
		best, matched := 0.0, false
		for _, q := range qvs {
			s, ok := score(q, item)
			if !ok {
				continue
			}
			matched = true
			if s > best {
				best = s
			}
		}
		if !matched {
			continue
		}
		out = append(out, graphrag.Scored[T]{Item: item, Score: best})
	}
	out = topN(out, topK)
	r.log.Debug("multi-query retrieval", "queries", len(queries), "pool", len(pool), "returned", len(out))
	return out, nil
}

// Rerank scores 0.7*cos(query, item) + 0.3*mean(cos(ctx_i, item)). With no context
// queries the second term is 0, so every score is scaled by 0.7.
func (r *Retriever[T]) Rerank(ctx context.Context, pool []T, query string, contextQueries []string) ([]graphrag.Scored[T], error) {
	if len(pool) == 0 {
		return []graphrag.Scored[T]{}, nil
	}
	qv, err := r.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	cvs, err := r.emb.EmbedBatch(ctx, contextQueries)
	if err != nil {
		return nil, err
	}

	out := make([]graphrag.Scored[T], 0, len(pool))
	for _, item := range pool {
		main, ok := score(qv, item)
		if !ok {
			continue
		}
		var ctxSim float64
		if len(cvs) > 0 {
			for _, cv := range cvs {
				s, _ := score(cv, item)
				ctxSim += s
			}
			ctxSim /= float64(len(cvs))
		}
		out = append(out, graphrag.Scored[T]{Item: item, Score: 0.7*main + 0.3*ctxSim})
	}
	return topN(out, -1), nil
}

// Diversity greedily picks the candidate maximising relevance − weight·maxSim(selected)
// until topK items are chosen or no remaining candidate scores above -1. Scores are the
// penalised values.
func (r *Retriever[T]) Diversity(ctx context.Context, pool []T, query string, topK int, weight float64) ([]graphrag.Scored[T], error) {
	out := []graphrag.Scored[T]{}
	if len(pool) == 0 || topK <= 0 {
		return out, nil
	}
	qv, err := r.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	relevance := make([]float64, len(pool))
	usable := make([]bool, len(pool))
	for i, item := range pool {
		relevance[i], usable[i] = score(qv, item)
	}
	taken := make([]bool, len(pool))

	for len(out) < topK {
		best, bestScore := -1, -1.0
		for i, item := range pool {
			if taken[i] || !usable[i] {
				continue
			}
			maxSim := 0.0
			for _, sel := range out {
				if s := embedding.Similarity(item.Vector(), sel.Item.Vector()); s > maxSim {
					maxSim = s
				}
			}
			if s := relevance[i] - weight*maxSim; s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		out = append(out, graphrag.Scored[T]{Item: pool[best], Score: bestScore})
	}
	return out, nil
}

// Hierarchical assigns each candidate to the first level whose name appears in its origin
// (or label when it has none), case-insensitively; unmatched candidates fall into level 0.
// Scores are cos · (1 − 0.1·levelIndex).
func (r *Retriever[T]) Hierarchical(ctx context.Context, pool []T, query string, levels []string) ([]graphrag.Scored[T], error) {
	if len(pool) == 0 || len(levels) == 0 {
		return []graphrag.Scored[T]{}, nil
	}
	qv, err := r.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]graphrag.Scored[T], 0, len(pool))
	for _, item := range pool {
		s, ok := score(qv, item)
		if !ok {
			continue
		}
		idx := levelIndex(item, levels)
		out = append(out, graphrag.Scored[T]{Item: item, Score: s * (1.0 - 0.1*float64(idx))})
	}
	return topN(out, -1), nil
}

func levelIndex(item Candidate, levels []string) int {
	hay := item.Origin()
	if strings.TrimSpace(hay) == "" {
		hay = item.Label()
	}
	hay = strings.ToLower(hay)
	if hay == "" {
		return 0
	}
	for i, l := range levels {
		if l != "" && strings.Contains(hay, strings.ToLower(l)) {
			return i
		}
	}
	return 0
}

// AdaptiveThreshold keeps every candidate scoring at least max(base, 0.8·best).
func (r *Retriever[T]) AdaptiveThreshold(ctx context.Context, pool []T, query string, base float64) ([]graphrag.Scored[T], error) {
	if len(pool) == 0 {
		return []graphrag.Scored[T]{}, nil
	}
	qv, err := r.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	all := TopK(qv, pool, -1)
	if len(all) == 0 {
		return all, nil
	}
	threshold := base
	if t := all[0].Score * 0.8; t > threshold {
		threshold = t
	}
	cut := len(all)
	for i, s := range all {
		if s.Score < threshold {
			cut = i
			break
		}
	}
	return all[:cut], nil
}
