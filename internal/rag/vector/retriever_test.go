package vector

import (
	"context"
	"math"
	"testing"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/engine/mock"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
)

// unit returns a 2-d unit vector whose cosine with (1,0) is c.
func unit(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func newRetriever(t *testing.T) (*Retriever[graphrag.Document], *mock.Engine) {
	t.Helper()
	eng := mock.New()
	eng.SetVector("q", []float32{1, 0})
	gw := embedding.New(nil, eng, nil, nil, embedding.Config{Model: "m"})
	return New[graphrag.Document](nil, gw), eng
}

func doc(id string, c float64) graphrag.Document {
	return graphrag.Document{ID: id, Title: id, Embedding: unit(c)}
}

func ids(in []graphrag.Scored[graphrag.Document]) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.Item.ID)
	}
	return out
}

func TestAdaptiveThresholdKeepsTopTwo(t *testing.T) {
	r, _ := newRetriever(t)
	pool := []graphrag.Document{doc("a", 0.9), doc("b", 0.85), doc("c", 0.4)}
	out, err := r.AdaptiveThreshold(context.Background(), pool, "q", 0.5)
	if err != nil {
		t.Fatalf("AdaptiveThreshold: %v", err)
	}
	if got := ids(out); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got=%v", got)
	}
}

func TestMultiQueryTakesBestMatch(t *testing.T) {
	r, eng := newRetriever(t)
	eng.SetVector("q2", []float32{0, 1})
	pool := []graphrag.Document{
		doc("a", 0.2),
		{ID: "b", Embedding: []float32{0, 1}},
		{ID: "no-vec"},
	}
	out, err := r.MultiQuery(context.Background(), []string{"q", "q2"}, pool, 10)
	if err != nil {
		t.Fatalf("MultiQuery: %v", err)
	}
	if len(out) != 2 || out[0].Item.ID != "b" || math.Abs(out[0].Score-1) > 1e-6 {
		t.Fatalf("out=%+v", out)
	}
	if eng.EmbedCalls() != 1 {
		t.Fatalf("queries should be embedded in one batch, calls=%d", eng.EmbedCalls())
	}
	top1, _ := r.MultiQuery(context.Background(), []string{"q", "q2"}, pool, 1)
	if len(top1) != 1 {
		t.Fatalf("topK not applied")
	}
}

func TestRerankWithoutContextScalesBySevenTenths(t *testing.T) {
	r, _ := newRetriever(t)
	pool := []graphrag.Document{doc("a", 1.0), doc("b", 0.5)}
	out, err := r.Rerank(context.Background(), pool, "q", nil)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if math.Abs(out[0].Score-0.7) > 1e-6 || math.Abs(out[1].Score-0.35) > 1e-6 {
		t.Fatalf("scores=%v,%v", out[0].Score, out[1].Score)
	}
}

func TestRerankBlendsContext(t *testing.T) {
	r, eng := newRetriever(t)
	eng.SetVector("ctx", []float32{0, 1})
	pool := []graphrag.Document{{ID: "a", Embedding: []float32{0, 1}}}
	out, err := r.Rerank(context.Background(), pool, "q", []string{"ctx"})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if math.Abs(out[0].Score-0.3) > 1e-6 {
		t.Fatalf("score=%v", out[0].Score)
	}
}

func TestDiversityWeightTradesRelevanceForSpread(t *testing.T) {
	r, _ := newRetriever(t)
	pool := []graphrag.Document{
		doc("a", 0.95),
		doc("a-dup", 0.94),
		{ID: "far", Embedding: []float32{0.7, -0.714}},
	}

	plain, err := r.Diversity(context.Background(), pool, "q", 2, 0)
	if err != nil {
		t.Fatalf("Diversity: %v", err)
	}
	if got := ids(plain); got[0] != "a" || got[1] != "a-dup" {
		t.Fatalf("weight 0 should follow relevance, got=%v", got)
	}

	spread, _ := r.Diversity(context.Background(), pool, "q", 2, 1)
	if got := ids(spread); got[0] != "a" || got[1] != "far" {
		t.Fatalf("weight 1 should prefer the distinct item, got=%v", got)
	}

	// Raising the weight never increases the redundancy of the selection.
	redundancy := func(sel []graphrag.Scored[graphrag.Document]) float64 {
		return embedding.Similarity(sel[0].Item.Embedding, sel[1].Item.Embedding)
	}
	prev := math.Inf(1)
	for _, w := range []float64{0, 0.25, 0.5, 1, 2} {
		sel, _ := r.Diversity(context.Background(), pool, "q", 2, w)
		if got := redundancy(sel); got > prev+1e-9 {
			t.Fatalf("weight %v increased redundancy %v > %v", w, got, prev)
		} else {
			prev = got
		}
	}
}

func TestDiversityStopsWhenNothingComparable(t *testing.T) {
	r, _ := newRetriever(t)
	pool := []graphrag.Document{doc("a", 0.9), {ID: "no-vec"}}
	out, _ := r.Diversity(context.Background(), pool, "q", 5, 0.3)
	if len(out) != 1 {
		t.Fatalf("out=%v", ids(out))
	}
}

func TestHierarchicalLevelWeights(t *testing.T) {
	r, _ := newRetriever(t)
	pool := []graphrag.Document{
		{ID: "chapter", Source: "Book/Chapter 3", Embedding: unit(1)},
		{ID: "book", Source: "BOOK", Embedding: unit(1)},
		{ID: "none", Source: "web", Embedding: unit(1)},
	}
	out, err := r.Hierarchical(context.Background(), pool, "q", []string{"section", "chapter", "book"})
	if err != nil {
		t.Fatalf("Hierarchical: %v", err)
	}
	scores := map[string]float64{}
	for _, s := range out {
		scores[s.Item.ID] = s.Score
	}
	if math.Abs(scores["none"]-1) > 1e-6 || math.Abs(scores["chapter"]-0.9) > 1e-6 || math.Abs(scores["book"]-0.8) > 1e-6 {
		t.Fatalf("scores=%v", scores)
	}
}

func TestTopKAndMostSimilar(t *testing.T) {
	pool := []graphrag.Document{doc("a", 0.1), doc("b", 0.8), {ID: "short", Embedding: []float32{1}}}
	out := TopK([]float32{1, 0}, pool, 5)
	if got := ids(out); len(got) != 2 || got[0] != "b" {
		t.Fatalf("got=%v", got)
	}
	best, ok := MostSimilar([]float32{1, 0}, pool)
	if !ok || best.Item.ID != "b" {
		t.Fatalf("best=%+v ok=%v", best, ok)
	}
	if _, ok := MostSimilar([]float32{1, 0}, []graphrag.Document{{ID: "x"}}); ok {
		t.Fatalf("expected no match")
	}
}

func TestEntitiesAreCandidates(t *testing.T) {
	eng := mock.New()
	eng.SetVector("q", []float32{1, 0})
	gw := embedding.New(nil, eng, nil, nil, embedding.Config{})
	r := New[graphrag.Entity](nil, gw)
	out, err := r.MultiQuery(context.Background(), []string{"q"}, []graphrag.Entity{{ID: "e", Name: "ML", Embedding: []float32{1, 0}}}, 3)
	if err != nil || len(out) != 1 {
		t.Fatalf("out=%v err=%v", out, err)
	}
}

func TestHierarchicalDeepLevelsGoNonPositive(t *testing.T) {
	r, _ := newRetriever(t)
	levels := make([]string, 12)
	for i := range levels {
		levels[i] = "tier_" + string(rune('a'+i))
	}
	pool := []graphrag.Document{
		{ID: "tenth", Source: "corpus/tier_k", Embedding: unit(1)},
		{ID: "eleventh", Source: "corpus/tier_l", Embedding: unit(1)},
	}
	out, err := r.Hierarchical(context.Background(), pool, "q", levels)
	if err != nil {
		t.Fatalf("Hierarchical: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("out=%v", ids(out))
	}
	scores := map[string]float64{}
	for _, s := range out {
		scores[s.Item.ID] = s.Score
	}
	if math.Abs(scores["tenth"]) > 1e-6 {
		t.Fatalf("tenth=%v", scores["tenth"])
	}
	if math.Abs(scores["eleventh"]+0.1) > 1e-6 {
		t.Fatalf("eleventh=%v", scores["eleventh"])
	}
}
