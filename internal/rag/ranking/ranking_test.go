package ranking

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

var fixedNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newRanker() *Ranker[graphrag.Document] {
	r := New[graphrag.Document](nil)
	r.now = func() time.Time { return fixedNow }
	return r
}

func daysAgo(n int) *time.Time {
	t := fixedNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func ids(in []graphrag.Scored[graphrag.Document]) string {
	var out []string
	for _, s := range in {
		out = append(out, s.Item.ID)
	}
	return strings.Join(out, ",")
}

func sample() []graphrag.Scored[graphrag.Document] {
	return []graphrag.Scored[graphrag.Document]{
		{Item: graphrag.Document{ID: "a", Title: "graph databases", Source: "official-docs", CreatedAt: daysAgo(10), Embedding: []float32{1, 0}}, Score: 0.9},
		{Item: graphrag.Document{ID: "b", Title: "graph databases intro", Source: "blog", CreatedAt: daysAgo(400), Embedding: []float32{0.99, 0.05}}, Score: 0.85},
		{Item: graphrag.Document{ID: "c", Title: "vector search", Source: "research", Embedding: []float32{0, 1}}, Score: 0.7},
		{Item: graphrag.Document{ID: "d", Title: "misc", Source: "spam"}, Score: 0.3},
	}
}

func TestRankStageOrder(t *testing.T) {
	r := newRanker()
	got := r.Rank(sample(), Config{MinRelevance: 0.5, DiversityThreshold: 0.3, MaxResults: 5})
	// b is a near-duplicate of a; d is below the threshold.
	if ids(got) != "a,c" {
		t.Fatalf("ranked=%s", ids(got))
	}
}

func TestRankIsIdempotent(t *testing.T) {
	r := newRanker()
	start, end := daysAgo(100), daysAgo(0)
	cfg := Config{
		MinRelevance:       0.5,
		Start:              start,
		End:                end,
		BlockedSources:     []string{"spam"},
		DiversityThreshold: 0.3,
		MaxResults:         3,
	}
	once := r.Rank(sample(), cfg)
	twice := r.Rank(once, cfg)
	if ids(once) != ids(twice) {
		t.Fatalf("once=%s twice=%s", ids(once), ids(twice))
	}
}

func TestFilterByTimeKeepsUndated(t *testing.T) {
	got := FilterByTime(sample(), daysAgo(30), nil)
	if ids(got) != "a,c,d" {
		t.Fatalf("filtered=%s", ids(got))
	}
}

func TestFilterBySource(t *testing.T) {
	in := sample()
	in = append(in, graphrag.Scored[graphrag.Document]{Item: graphrag.Document{ID: "e"}, Score: 0.6})

	if got := FilterBySource(in, nil, []string{"spam"}); ids(got) != "a,b,c,e" {
		t.Fatalf("blocked=%s", ids(got))
	}
	if got := FilterBySource(in, []string{"blog", "research"}, []string{"blog"}); ids(got) != "c" {
		t.Fatalf("blocked wins=%s", ids(got))
	}
}

func TestFactors(t *testing.T) {
	doc := graphrag.Document{Content: strings.Repeat("x", 2500), Source: "academic journal", CreatedAt: daysAgo(73)}
	if got := Recency(doc, fixedNow); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("recency=%v", got)
	}
	if Recency(graphrag.Document{CreatedAt: daysAgo(800)}, fixedNow) != 0 {
		t.Fatalf("old recency should floor at 0")
	}
	if Recency(graphrag.Document{}, fixedNow) != 0.5 {
		t.Fatalf("undated recency")
	}
	if Authority(doc) != 0.8 || Authority(graphrag.Document{Source: "official"}) != 0.9 ||
		Authority(graphrag.Document{Source: "news wire"}) != 0.6 || Authority(graphrag.Document{}) != 0.5 {
		t.Fatalf("authority")
	}
	if Completeness(doc) != 0.5 || Completeness(graphrag.Document{Content: strings.Repeat("x", 9000)}) != 1 {
		t.Fatalf("document completeness")
	}
	ent := graphrag.Entity{Description: "d", Embedding: []float32{1}}
	if Completeness(ent) != 1 || Completeness(graphrag.Entity{Description: " "}) != 0 {
		t.Fatalf("entity completeness")
	}
}

func TestMultiFactorClampsAndResorts(t *testing.T) {
	r := newRanker()
	in := []graphrag.Scored[graphrag.Document]{
		{Item: graphrag.Document{ID: "old", Source: "blog", CreatedAt: daysAgo(365)}, Score: 0.6},
		{Item: graphrag.Document{ID: "new", Source: "official", CreatedAt: daysAgo(0)}, Score: 0.5},
	}
	got := r.MultiFactor(in, map[Factor]float64{FactorRecency: 0.2, FactorAuthority: 0.1, "unknown": 5})
	if ids(got) != "new,old" {
		t.Fatalf("order=%s", ids(got))
	}
	if math.Abs(got[0].Score-0.79) > 1e-9 || math.Abs(got[1].Score-0.65) > 1e-9 {
		t.Fatalf("scores=%v,%v", got[0].Score, got[1].Score)
	}

	clamped := r.MultiFactor(in, map[Factor]float64{FactorPopularity: 4})
	if clamped[0].Score != 1 {
		t.Fatalf("clamp high=%v", clamped[0].Score)
	}
	clamped = r.MultiFactor(in, map[Factor]float64{FactorPopularity: -4})
	if clamped[0].Score != 0 {
		t.Fatalf("clamp low=%v", clamped[0].Score)
	}
}

func TestSimilarityFallback(t *testing.T) {
	a := graphrag.Document{Title: "Graph Neural Networks", Source: "arxiv"}
	b := graphrag.Document{Title: "graph networks", Source: "arxiv"}
	// Jaccard {graph, neural, networks} vs {graph, networks} = 2/3.
	if got := Similarity(a, b); math.Abs(got-(0.7*2.0/3.0+0.3)) > 1e-9 {
		t.Fatalf("similarity=%v", got)
	}
	if got := Similarity(graphrag.Document{Title: "x"}, graphrag.Document{Title: "y", Source: "s"}); got != 0 {
		t.Fatalf("disjoint=%v", got)
	}
}

func TestTruncateWithoutDiversity(t *testing.T) {
	got := newRanker().Rank(sample(), Config{MaxResults: 2})
	if ids(got) != "a,b" {
		t.Fatalf("truncated=%s", ids(got))
	}
}
